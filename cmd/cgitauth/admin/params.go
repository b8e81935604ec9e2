package admin

import (
	"crypto/rand"

	"github.com/andrebq/cgitauth/authprogram"
)

// overridden by tests to keep hashing fast
var (
	randReader = rand.Reader
	hashParams = authprogram.DefaultHashParams
)
