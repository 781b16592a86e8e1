package response

const (
	CodeOK                 = 0
	CodeBadRequest         = 400
	CodeUnauthorized       = 401
	CodeForbidden          = 403
	CodeNotFound           = 404
	CodeConflict           = 409
	CodeTooManyRequests    = 429
	CodeInternal           = 500
	CodeServiceUnavailable = 503
)

// HTTPStatus 业务码为 4xx/5xx 时 HTTP 状态与之一致
func HTTPStatus(code int) int {
	if code >= 400 && code < 600 {
		return code
	}
	return 200
}
