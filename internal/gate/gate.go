// Package gate decides whether a route may render for the current caller.
// A route stays Unresolved, with a loading placeholder and no redirect,
// until identity and profile have both settled; only then does it become
// Granted or Denied. That ordering prevents redirect flicker on slow
// identity resolution.
package gate

import (
	"storefront-client/internal/aggregate"
	"storefront-client/internal/models"
)

type State string

const (
	Unresolved State = "unresolved"
	Denied     State = "denied"
	Granted    State = "granted"
)

// RouteCatalog is the neutral route denied callers are sent to.
const (
	RouteCatalog = "/products"
	RouteCart    = "/cart"
)

// Decision is the outcome of evaluating a route gate. Redirect is set only
// when Denied.
type Decision struct {
	State    State
	Redirect string
}

// Session is the gate's view of the caller: whether an identity is present
// and, once loaded, its profile. ProfileResolved must be true before any
// deny decision is made.
type Session struct {
	Authenticated   bool
	ProfileResolved bool
	Profile         *models.UserProfile
}

func (s Session) hasRole(role string) bool {
	return s.Authenticated && s.Profile != nil && s.Profile.Role == role
}

// SellerRoute gates seller-only routes (dashboard, sales orders).
func SellerRoute(s Session) Decision {
	return roleRoute(s, models.RoleSeller)
}

// BuyerRoute gates buyer-only routes (cart, buyer orders, confirmation).
func BuyerRoute(s Session) Decision {
	return roleRoute(s, models.RoleBuyer)
}

func roleRoute(s Session, role string) Decision {
	if s.Authenticated && !s.ProfileResolved {
		return Decision{State: Unresolved}
	}
	if !s.hasRole(role) {
		return Decision{State: Denied, Redirect: RouteCatalog}
	}
	return Decision{State: Granted}
}

// CheckoutRoute gates the checkout route: buyer-only, and an empty cart is
// sent back to the cart view. The cart state is evaluated only after the
// role gate grants, and stays Unresolved until the cart has loaded.
func CheckoutRoute(s Session, cartResolved bool, cart []models.CartItem) Decision {
	d := BuyerRoute(s)
	if d.State != Granted {
		return d
	}
	if !cartResolved {
		return Decision{State: Unresolved}
	}
	if len(cart) == 0 {
		return Decision{State: Denied, Redirect: RouteCart}
	}
	return Decision{State: Granted}
}

// ReviewEligibility says whether the review form may be offered for a
// product. Offered is meaningful only once Resolved is true: the form is
// withheld, not denied, while order data is still loading.
type ReviewEligibility struct {
	Resolved bool
	Offered  bool
}

// CanReview offers the review form to authenticated buyers with at least
// one completed order containing the product.
func CanReview(s Session, ordersResolved bool, orders []models.Order, productID string) ReviewEligibility {
	if !s.Authenticated || (s.ProfileResolved && !s.hasRole(models.RoleBuyer)) {
		return ReviewEligibility{Resolved: true, Offered: false}
	}
	if !s.ProfileResolved || !ordersResolved {
		return ReviewEligibility{}
	}
	return ReviewEligibility{
		Resolved: true,
		Offered:  aggregate.HasCompletedOrderFor(orders, productID),
	}
}
