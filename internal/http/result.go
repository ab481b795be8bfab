package httpapi

// Result 统一响应信封：成功时 error 为 null，失败时 data 为 null
type Result[T any] struct {
	Data  T       `json:"data"`
	Error *string `json:"error"`
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

func Fail(message string) Result[any] {
	return Result[any]{Data: nil, Error: &message}
}
