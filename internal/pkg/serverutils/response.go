package serverutils

// ErrorBody is the error shape the chat frontend expects.
type ErrorBody struct {
	Detail string `json:"detail"`
}

type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) Response {
	return Response{
		Success: true,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, detail string) ErrorBody {
	return ErrorBody{Detail: detail}
}
