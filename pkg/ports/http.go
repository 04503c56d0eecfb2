package ports

import "net/http"

// HTTPDoer issues the requests of api nodes. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
