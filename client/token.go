package client

// TokenSource supplies the bearer token sent with every request.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that never changes.
type StaticToken string

func (t StaticToken) Token() string {
	return string(t)
}
