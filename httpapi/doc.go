// Package httpapi exposes a provider agent over HTTP and drives the same
// negotiation from the requester side as an HTTP client. The wire contract
// mirrors the in-process message kinds: a quote maps to 402 Payment
// Required, a delivery to 200, a rejected proof to 400 and an unavailable
// service to 409. Payment proofs travel in the X-Payment-Proof header.
package httpapi
