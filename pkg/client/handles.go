package client

import "context"

type Listing struct {
	client *Client
	id     uint64
}

func (l *Listing) ID() uint64 {
	return l.id
}

func (l *Listing) Delist(ctx context.Context) error {
	return l.client.Delist(ctx, l.id)
}

type Rental struct {
	client    *Client
	id        uint64
	listingID uint64
}

func (r *Rental) ID() uint64 {
	return r.id
}

func (r *Rental) ListingID() uint64 {
	return r.listingID
}

func (r *Rental) Return(ctx context.Context) error {
	return r.client.Return(ctx, r.id)
}
