package monitoring

import "errors"

var errNoDatabase = errors.New("database not initialised")
