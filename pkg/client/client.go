package client

import (
	"context"
	"fmt"
	"io"
	"time"

	pb "github.com/pixperk/escrowd/api/v1"
	"github.com/pixperk/escrowd/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const DefaultTimeout = 10 * time.Second

// a connection to an escrowd node acting as one identity
type Client struct {
	addr     string
	identity types.Identity
	conn     *grpc.ClientConn
	client   pb.EscrowServiceClient

	timeout  time.Duration
	dialOpts []grpc.DialOption
}

type Option func(*Client)

// per call timeout, zero disables it
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) { c.dialOpts = append(c.dialOpts, opts...) }
}

func NewClient(addr string, identity types.Identity, opts ...Option) (*Client, error) {
	c := &Client{
		addr:     addr,
		identity: identity,
		timeout:  DefaultTimeout,
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := grpc.NewClient(addr, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.client = pb.NewEscrowServiceClient(conn)

	return c, nil
}

func (c *Client) Identity() types.Identity {
	return c.identity
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// lists one asset, the ledger must already be approved for it
func (c *Client) List(ctx context.Context, terms pb.ListTerms) (*Listing, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.List(ctx, &pb.ListRequest{Lender: string(c.identity), Terms: terms})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return &Listing{client: c, id: resp.ListingIDs[0]}, nil
}

func (c *Client) ListMany(ctx context.Context, terms ...pb.ListTerms) ([]*Listing, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.ListMany(ctx, &pb.ListManyRequest{Lender: string(c.identity), Terms: terms})
	if err != nil {
		return nil, fmt.Errorf("list many: %w", err)
	}

	listings := make([]*Listing, len(resp.ListingIDs))
	for i, id := range resp.ListingIDs {
		listings[i] = &Listing{client: c, id: id}
	}
	return listings, nil
}

// rents a listing for days, paying the fee and escrowing the collateral
func (c *Client) Rent(ctx context.Context, listingID uint64, days uint32) (*Rental, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.Rent(ctx, &pb.RentRequest{Borrower: string(c.identity), ListingID: listingID, Duration: days})
	if err != nil {
		return nil, fmt.Errorf("rent listing %d: %w", listingID, err)
	}
	return &Rental{client: c, id: resp.RentalIDs[0], listingID: listingID}, nil
}

func (c *Client) RentMany(ctx context.Context, items ...pb.RentItem) ([]*Rental, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.RentMany(ctx, &pb.RentManyRequest{Borrower: string(c.identity), Rentals: items})
	if err != nil {
		return nil, fmt.Errorf("rent many: %w", err)
	}

	rentals := make([]*Rental, len(resp.RentalIDs))
	for i, id := range resp.RentalIDs {
		rentals[i] = &Rental{client: c, id: id, listingID: items[i].ListingID}
	}
	return rentals, nil
}

// returns rentals, more than one id goes as a single atomic batch
func (c *Client) Return(ctx context.Context, rentalIDs ...uint64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var err error
	if len(rentalIDs) == 1 {
		_, err = c.client.Return(ctx, &pb.ReturnRequest{Caller: string(c.identity), RentalID: rentalIDs[0]})
	} else {
		_, err = c.client.ReturnMany(ctx, &pb.ReturnManyRequest{Caller: string(c.identity), RentalIDs: rentalIDs})
	}
	if err != nil {
		return fmt.Errorf("return %v: %w", rentalIDs, err)
	}
	return nil
}

// claims the collateral of defaulted rentals
func (c *Client) Claim(ctx context.Context, rentalIDs ...uint64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var err error
	if len(rentalIDs) == 1 {
		_, err = c.client.Claim(ctx, &pb.ClaimRequest{Caller: string(c.identity), RentalID: rentalIDs[0]})
	} else {
		_, err = c.client.ClaimMany(ctx, &pb.ClaimManyRequest{Caller: string(c.identity), RentalIDs: rentalIDs})
	}
	if err != nil {
		return fmt.Errorf("claim %v: %w", rentalIDs, err)
	}
	return nil
}

func (c *Client) Delist(ctx context.Context, listingIDs ...uint64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var err error
	if len(listingIDs) == 1 {
		_, err = c.client.Delist(ctx, &pb.DelistRequest{Caller: string(c.identity), ListingID: listingIDs[0]})
	} else {
		_, err = c.client.DelistMany(ctx, &pb.DelistManyRequest{Caller: string(c.identity), ListingIDs: listingIDs})
	}
	if err != nil {
		return fmt.Errorf("delist %v: %w", listingIDs, err)
	}
	return nil
}

func (c *Client) GetListing(ctx context.Context, id uint64) (types.Listing, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.GetListing(ctx, &pb.GetListingRequest{ListingID: id})
	if err != nil {
		return types.Listing{}, fmt.Errorf("get listing %d: %w", id, err)
	}
	return resp.Listing, nil
}

func (c *Client) GetRental(ctx context.Context, id uint64) (*pb.GetRentalResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.GetRental(ctx, &pb.GetRentalRequest{RentalID: id})
	if err != nil {
		return nil, fmt.Errorf("get rental %d: %w", id, err)
	}
	return resp, nil
}

// balance of this identity and the allowance it granted the ledger
func (c *Client) Balance(ctx context.Context, asset types.AssetID) (*pb.BalanceResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.Balance(ctx, &pb.BalanceRequest{Holder: string(c.identity), Asset: string(asset)})
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", asset, err)
	}
	return resp, nil
}

// mints a new asset owned by this identity, a test and demo helper
func (c *Client) Mint(ctx context.Context, asset types.AssetRef) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.MintAsset(ctx, &pb.MintAssetRequest{
		Owner:    string(c.identity),
		Registry: string(asset.Registry),
		Instance: string(asset.Instance),
	})
	if err != nil {
		return fmt.Errorf("mint %s: %w", asset, err)
	}
	return nil
}

// credits amount of asset to this identity
func (c *Client) Faucet(ctx context.Context, asset types.AssetID, amount types.Amount) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.Faucet(ctx, &pb.FaucetRequest{To: string(c.identity), Asset: string(asset), Amount: uint64(amount)})
	if err != nil {
		return fmt.Errorf("faucet: %w", err)
	}
	return nil
}

// lets the ledger take custody of this identity's assets
func (c *Client) ApproveLedger(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.client.SetApproval(ctx, &pb.SetApprovalRequest{Owner: string(c.identity), Approved: true}); err != nil {
		return fmt.Errorf("approve ledger: %w", err)
	}
	return nil
}

// lets the ledger pull up to amount of asset for fees and collateral
func (c *Client) ApprovePayment(ctx context.Context, asset types.AssetID, amount types.Amount) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.ApprovePayment(ctx, &pb.ApprovePaymentRequest{
		Owner:  string(c.identity),
		Asset:  string(asset),
		Amount: uint64(amount),
	})
	if err != nil {
		return fmt.Errorf("approve payment: %w", err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (*pb.GetStatusResponse, error) {
	return c.client.GetStatus(ctx, &pb.GetStatusRequest{})
}

// streams events until ctx is done or the stream fails
// the error channel receives at most one error and is closed with the event channel
func (c *Client) Watch(ctx context.Context, fromSeq uint64, kinds ...types.EventKind) (<-chan types.Event, <-chan error) {
	out := make(chan types.Event)
	errc := make(chan error, 1)

	req := &pb.WatchRequest{FromSeq: fromSeq}
	for _, k := range kinds {
		req.Kinds = append(req.Kinds, string(k))
	}

	go func() {
		defer close(out)
		defer close(errc)

		stream, err := c.client.Watch(ctx, req)
		if err != nil {
			errc <- fmt.Errorf("watch: %w", err)
			return
		}

		for {
			ev, err := stream.Recv()
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					errc <- fmt.Errorf("watch: %w", err)
				}
				return
			}
			select {
			case out <- *ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errc
}

func (c *Client) Stop() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
