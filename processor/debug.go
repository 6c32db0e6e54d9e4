package processor

import "github.com/weaming/raw2mono-go/raw"

var debug = raw.Debug
