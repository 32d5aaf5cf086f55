package web

import _ "embed"

// Index is the browser client served for every non-API path.
//
//go:embed index.html
var Index []byte
