package model

import "fmt"

// Canned phrase pools. Selection is a deterministic hash of the input so the
// same negotiation produces the same line, which keeps demos and tests stable.
var (
	paymentRequestPhrases = []string{
		"I'd love to help you with that, but I need a payment of %.2f first. Thanks!",
		"Payment required: %.2f for your order. Please complete the payment to proceed!",
		"Everything is ready on my side! Just need %.2f to dispense it for you.",
	}
	requestPhrases = []string{
		"Hi there! I'd like to request %s service. Can you help me?",
		"Hello! I need %s. What do I need to do to get it?",
		"Good day! I'm interested in your %s service. Please let me know how to proceed.",
	}
	successPhrases = []string{
		"Perfect! Successfully obtained %s. Mission accomplished!",
		"Great! The %s transaction completed successfully. Very satisfied!",
		"Excellent! %s acquired as planned. Everything went smoothly.",
	}
	deliveryPhrases = []string{
		"Payment verified! Here's your %s. Enjoy!",
		"%s dispensed successfully. Have a great day!",
		"Fresh %s coming right up! Thanks for your payment.",
	}
)

func pick(pool []string, seed string) string {
	var h uint32
	for i := 0; i < len(seed); i++ {
		h = h*31 + uint32(seed[i])
	}
	return pool[int(h)%len(pool)]
}

// PaymentRequestPhrase returns a human-readable payment request line.
func PaymentRequestPhrase(price float64) string {
	return fmt.Sprintf(pick(paymentRequestPhrases, fmt.Sprintf("%g", price)), price)
}

// RequestPhrase returns a human-readable service request line.
func RequestPhrase(service string) string {
	return fmt.Sprintf(pick(requestPhrases, service), service)
}

// SuccessPhrase returns a buyer-side confirmation line after delivery.
func SuccessPhrase(service string) string {
	return fmt.Sprintf(pick(successPhrases, service), service)
}

// DeliveryPhrase returns a seller-side delivery confirmation line.
func DeliveryPhrase(service string) string {
	return fmt.Sprintf(pick(deliveryPhrases, service), service)
}
