package uploads

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/storage"
)

// Transfer hands every staged file to the remote store. Files are independent,
// so their uploads run concurrently. When any upload fails, the siblings that
// already made it remote are compensated away before the error is returned,
// so a failed request never strands remote objects.
func Transfer(ctx context.Context, store storage.MediaStore, staged *Staged) (map[string]storage.Asset, error) {
	ctx, span := logging.StartSpan(ctx, "uploads.transfer")

	var (
		mu     sync.Mutex
		assets = make(map[string]storage.Asset, len(staged.Files))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range staged.Files {
		f := f
		g.Go(func() error {
			asset, err := store.Upload(gctx, f.LocalPath, f.Rule.Kind)
			if err != nil {
				return err
			}
			mu.Lock()
			assets[f.Field] = asset
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.Fail(err)
		Compensate(context.WithoutCancel(ctx), store, assets)
		return nil, apperror.Internal("upload media to remote storage", err)
	}

	span.End()
	return assets, nil
}

// Compensate deletes remote objects left behind by a request that failed
// after transferring them. Deletes run jointly and each failure is logged
// and tolerated; compensation is best-effort by contract.
func Compensate(ctx context.Context, store storage.MediaStore, assets map[string]storage.Asset) {
	if len(assets) == 0 {
		return
	}

	logger := logging.FromContext(ctx)

	var wg sync.WaitGroup
	for field, asset := range assets {
		wg.Add(1)
		go func(field string, asset storage.Asset) {
			defer wg.Done()
			if err := store.Delete(ctx, asset.PublicID, asset.Kind); err != nil {
				logger.Error("compensating delete failed", "field", field, "publicId", asset.PublicID, "error", err)
			}
		}(field, asset)
	}
	wg.Wait()
}
