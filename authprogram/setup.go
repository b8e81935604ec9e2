package authprogram

import (
	"context"
	"fmt"

	"github.com/andrebq/cgitauth/credstore"
	"github.com/andrebq/cgitauth/internal/logutil"
)

// Setup prepares store to hold accounts, creating the current layout when
// the store is empty.
func Setup(ctx context.Context, store *credstore.Store) error {
	err := store.Init(ctx)
	if err != nil {
		return fmt.Errorf("unable to setup %v, cause %w", store.Path(), err)
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("store", store.Path()).Msg("Store initialized")
	return nil
}
