package domain

// Change event names published after a successful mutation.
const (
	EventLayerCreated = "layerCreated"
	EventLayerUpdated = "layerUpdated"
	EventLayerDeleted = "layerDeleted"
)

// LayerEvent is one change notification. Data is a *Feature for create and
// update, a DeletedFeature for delete.
type LayerEvent struct {
	Name          string `json:"event"`
	ProjectNumber string `json:"project_number"`
	Data          any    `json:"data"`
}

// DeletedFeature identifies a removed feature in a layerDeleted event.
type DeletedFeature struct {
	ID            int64  `json:"id"`
	ProjectNumber string `json:"project_number"`
	UserID        string `json:"user_id"`
}
