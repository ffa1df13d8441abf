package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated   = "order.created"
	TopicCouponRedeemed = "coupon.redeemed"
	TopicCouponCreated  = "coupon.created"
	TopicCouponUpdated  = "coupon.updated"
	TopicCartMerged     = "cart.merged"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicCouponRedeemed,
		TopicCouponCreated,
		TopicCouponUpdated,
		TopicCartMerged,
	}
}
