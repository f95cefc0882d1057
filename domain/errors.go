package domain

import "errors"

var ErrTransactionClosed = errors.New("transaction already closed")
var ErrUnknownCommand = errors.New("unknown command")
