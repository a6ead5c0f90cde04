// Package query binds the structured cache keys to remote facade calls and
// executes mutations with their declared invalidation sets.
package query

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-client/internal/cache"
	"storefront-client/internal/identity"
	"storefront-client/internal/models"
	"storefront-client/internal/remote"
)

// Query is a typed view over one cache key.
type Query[T any] struct {
	cache *cache.Cache
	key   cache.Key
	fetch cache.FetchFunc
	opts  cache.Options
}

func newQuery[T any](c *cache.Cache, key cache.Key, opts cache.Options, fetch func(ctx context.Context) (T, error)) *Query[T] {
	return &Query[T]{
		cache: c,
		key:   key,
		opts:  opts,
		fetch: func(ctx context.Context) (any, error) { return fetch(ctx) },
	}
}

// decodeJSON rebuilds a typed value from a persisted snapshot.
func decodeJSON[T any](raw []byte) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, nil
}

func (q *Query[T]) Key() cache.Key {
	return q.key
}

// Get returns the current cached state without blocking; a fetch is started
// in the background when needed.
func (q *Query[T]) Get(ctx context.Context) (T, cache.Result) {
	return castResult[T](q.cache.Get(ctx, q.key, q.fetch, q.opts))
}

// Resolve waits for any in-flight fetch so request-scoped callers see
// settled data.
func (q *Query[T]) Resolve(ctx context.Context) (T, cache.Result) {
	return castResult[T](q.cache.Resolve(ctx, q.key, q.fetch, q.opts))
}

// Subscribe registers fn for every state transition of this key.
func (q *Query[T]) Subscribe(fn func(T, cache.Result)) (cancel func()) {
	return q.cache.Subscribe(q.key, q.fetch, q.opts, func(res cache.Result) {
		data, r := castResult[T](res)
		fn(data, r)
	})
}

func castResult[T any](res cache.Result) (T, cache.Result) {
	var data T
	if res.Data != nil {
		if v, ok := res.Data.(T); ok {
			data = v
		}
	}
	return data, res
}

// Queries holds the read bindings for one session. Identity changes
// invalidate every identity-scoped key so dependent views re-evaluate.
type Queries struct {
	cache       *cache.Cache
	remote      remote.Service
	ident       *identity.Context
	readRetries int
}

var identityScopedPrefixes = []cache.Key{
	cache.K("cart"),
	cache.K("buyerOrders"),
	cache.K("sellerOrders"),
	cache.K("currentUserProfile"),
	cache.K("callerRole"),
}

// New wires the read bindings. readRetries bounds transparent retries for
// reads whose failure is not terminal.
func New(c *cache.Cache, svc remote.Service, ident *identity.Context, readRetries int) *Queries {
	q := &Queries{cache: c, remote: svc, ident: ident, readRetries: readRetries}
	ident.Watch(func(models.Identity) {
		for _, prefix := range identityScopedPrefixes {
			c.Invalidate(prefix)
		}
	})
	return q
}

func (q *Queries) readOpts(enabled bool) cache.Options {
	return cache.Options{Enabled: enabled, Retries: q.readRetries}
}

// snapshotOpts marks a public query for warm-start persistence.
func snapshotOpts[T any](opts cache.Options) cache.Options {
	opts.Decode = decodeJSON[T]
	return opts
}

func (q *Queries) Products() *Query[[]models.Product] {
	return newQuery(q.cache, cache.K("products"),
		snapshotOpts[[]models.Product](q.readOpts(true)),
		q.remote.GetAllProducts)
}

func (q *Queries) ProductsByCategory(category string) *Query[[]models.Product] {
	return newQuery(q.cache, cache.K("productsByCategory", category),
		snapshotOpts[[]models.Product](q.readOpts(category != "")),
		func(ctx context.Context) ([]models.Product, error) {
			return q.remote.GetProductsByCategory(ctx, category)
		})
}

func (q *Queries) SearchProducts(term string) *Query[[]models.Product] {
	return newQuery(q.cache, cache.K("searchProducts", term),
		q.readOpts(term != ""),
		func(ctx context.Context) ([]models.Product, error) {
			return q.remote.SearchProducts(ctx, term)
		})
}

func (q *Queries) SellerProducts(seller models.Identity) *Query[[]models.Product] {
	return newQuery(q.cache, cache.K("sellerProducts", seller.String()),
		q.readOpts(!seller.IsAnonymous()),
		func(ctx context.Context) ([]models.Product, error) {
			return q.remote.GetSellerProducts(ctx, seller)
		})
}

func (q *Queries) Cart() *Query[[]models.CartItem] {
	return newQuery(q.cache, cache.K("cart"),
		q.readOpts(q.ident.Authenticated()),
		q.remote.GetCart)
}

func (q *Queries) BuyerOrders() *Query[[]models.Order] {
	return newQuery(q.cache, cache.K("buyerOrders"),
		q.readOpts(q.ident.Authenticated()),
		q.remote.GetBuyerOrders)
}

func (q *Queries) SellerOrders() *Query[[]models.Order] {
	return newQuery(q.cache, cache.K("sellerOrders"),
		q.readOpts(q.ident.Authenticated()),
		q.remote.GetSellerOrders)
}

func (q *Queries) ProductReviews(productID string) *Query[[]models.Review] {
	return newQuery(q.cache, cache.K("productReviews", productID),
		snapshotOpts[[]models.Review](q.readOpts(productID != "")),
		func(ctx context.Context) ([]models.Review, error) {
			return q.remote.GetProductReviews(ctx, productID)
		})
}

func (q *Queries) ProductAverageRating(productID string) *Query[float64] {
	return newQuery(q.cache, cache.K("productAverageRating", productID),
		snapshotOpts[float64](q.readOpts(productID != "")),
		func(ctx context.Context) (float64, error) {
			return q.remote.GetProductAverageRating(ctx, productID)
		})
}

// CurrentUserProfile probes for the caller's profile. A nil profile means
// "no profile yet" and is terminal, so the probe never retries.
func (q *Queries) CurrentUserProfile() *Query[*models.UserProfile] {
	return newQuery(q.cache, cache.K("currentUserProfile"),
		cache.Options{Enabled: q.ident.Authenticated()},
		q.remote.GetCallerUserProfile)
}

func (q *Queries) UserProfile(user models.Identity) *Query[*models.UserProfile] {
	return newQuery(q.cache, cache.K("userProfile", user.String()),
		snapshotOpts[*models.UserProfile](q.readOpts(!user.IsAnonymous())),
		func(ctx context.Context) (*models.UserProfile, error) {
			return q.remote.GetUserProfile(ctx, user)
		})
}

func (q *Queries) CallerRole() *Query[models.CallerRole] {
	return newQuery(q.cache, cache.K("callerRole"),
		q.readOpts(q.ident.Authenticated()),
		q.remote.GetCallerUserRole)
}
