package endpoints

type contextKey string

func (k contextKey) String() string {
	return string(k)
}

// context keys
var (
	CKRequestID = contextKey("request_id")
	CKCaller    = contextKey("caller_identity")
)
