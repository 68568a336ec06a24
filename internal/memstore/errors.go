package memstore

import "errors"

var errTxClosed = errors.New("transaction already closed")
