package httpadapter

import "errors"

var errFinalTopK = errors.New("final_top_k must be positive")
