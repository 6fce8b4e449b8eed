package messaging

// The marketplace routing table. Wire compatibility with the deployed
// services depends on these exact strings: a publisher and its consumer
// agree on nothing but them.

// Routes, producer side.
var (
	// AuthEmail: identity -> notification, account verification emails.
	AuthEmail = Route{Exchange: "email-notification", Kind: Direct, Key: "auth-email"}

	// OrderEmail: transaction/conversation -> notification, order emails.
	OrderEmail = Route{Exchange: "email-notification", Kind: Direct, Key: "order-email"}

	// BuyerUpdate: identity -> profile, account provisioning and buyer
	// profile mutations.
	BuyerUpdate = Route{Exchange: "buyer-update", Kind: Direct, Key: "user-buyer"}

	// SellerUpdate: transaction -> profile, order-lifecycle counter
	// updates.
	SellerUpdate = Route{Exchange: "seller-update", Kind: Direct, Key: "user-seller"}

	// SeedGig: profile -> catalog, seed responses carrying sampled
	// sellers.
	SeedGig = Route{Exchange: "seed-gig", Kind: Direct, Key: "receive-sellers"}

	// GigRequest: catalog -> profile, "need N sellers" seed requests.
	GigRequest = Route{Exchange: "gig-request", Kind: Direct, Key: "get-sellers"}

	// GigUpdate: profile -> catalog, review ratings folded onto gigs.
	GigUpdate = Route{Exchange: "update-gig", Kind: Direct, Key: "update-gig"}

	// Review: feedback -> profile & transaction. Fanout because two
	// unrelated services must each see every review without the publisher
	// knowing its consumers.
	Review = Route{Exchange: "review", Kind: Fanout, Key: ""}
)

// Subscriptions, consumer side.
var (
	AuthEmailQueue     = Subscription{Route: AuthEmail, Queue: "auth-email-queue"}
	OrderEmailQueue    = Subscription{Route: OrderEmail, Queue: "order-email-queue"}
	BuyerUpdateQueue   = Subscription{Route: BuyerUpdate, Queue: "user-buyer-queue"}
	SellerUpdateQueue  = Subscription{Route: SellerUpdate, Queue: "user-seller-queue"}
	SeedGigQueue       = Subscription{Route: SeedGig, Queue: "seed-gig-queue"}
	GigRequestQueue    = Subscription{Route: GigRequest, Queue: "gig-request-queue"}
	GigUpdateQueue     = Subscription{Route: GigUpdate, Queue: "gig-update-queue"}
	OrderReviewQueue   = Subscription{Route: Review, Queue: "order-review-queue"}
	ProfileReviewQueue = Subscription{Route: Review, Queue: "profile-review-queue"}
)

// Topology lists every subscription in the system.
func Topology() []Subscription {
	return []Subscription{
		AuthEmailQueue,
		OrderEmailQueue,
		BuyerUpdateQueue,
		SellerUpdateQueue,
		SeedGigQueue,
		GigRequestQueue,
		GigUpdateQueue,
		OrderReviewQueue,
		ProfileReviewQueue,
	}
}
