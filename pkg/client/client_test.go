package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	pb "github.com/pixperk/escrowd/api/v1"
	"github.com/pixperk/escrowd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeServer struct {
	pb.UnimplementedEscrowServiceServer

	mu       sync.Mutex
	returned []uint64
	batched  [][]uint64
	events   []types.Event
}

func (s *fakeServer) List(_ context.Context, req *pb.ListRequest) (*pb.ListResponse, error) {
	if req.Lender == "" {
		return nil, status.Error(codes.InvalidArgument, "lender is required")
	}
	return &pb.ListResponse{ListingIDs: []uint64{1}}, nil
}

func (s *fakeServer) RentMany(_ context.Context, req *pb.RentManyRequest) (*pb.RentResponse, error) {
	ids := make([]uint64, len(req.Rentals))
	for i := range req.Rentals {
		ids[i] = uint64(10 + i)
	}
	return &pb.RentResponse{RentalIDs: ids}, nil
}

func (s *fakeServer) Rent(_ context.Context, req *pb.RentRequest) (*pb.RentResponse, error) {
	if req.Duration > 5 {
		return nil, status.Error(codes.FailedPrecondition, "duration exceeded")
	}
	return &pb.RentResponse{RentalIDs: []uint64{7}}, nil
}

func (s *fakeServer) Return(_ context.Context, req *pb.ReturnRequest) (*pb.ReturnResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returned = append(s.returned, req.RentalID)
	return &pb.ReturnResponse{RentalIDs: []uint64{req.RentalID}}, nil
}

func (s *fakeServer) ReturnMany(_ context.Context, req *pb.ReturnManyRequest) (*pb.ReturnResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batched = append(s.batched, req.RentalIDs)
	return &pb.ReturnResponse{RentalIDs: req.RentalIDs}, nil
}

func (s *fakeServer) Balance(_ context.Context, req *pb.BalanceRequest) (*pb.BalanceResponse, error) {
	return &pb.BalanceResponse{Balance: 100, Allowance: 50}, nil
}

func (s *fakeServer) Watch(req *pb.WatchRequest, stream grpc.ServerStreamingServer[types.Event]) error {
	for _, ev := range s.events {
		if ev.Seq < req.FromSeq {
			continue
		}
		if err := stream.Send(&ev); err != nil {
			return err
		}
	}
	return nil
}

func newTestClient(t *testing.T, srv *fakeServer, identity types.Identity) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	g := grpc.NewServer()
	pb.RegisterEscrowServiceServer(g, srv)
	go g.Serve(lis)
	t.Cleanup(g.Stop)

	c, err := NewClient("passthrough:///bufnet", identity,
		WithTimeout(time.Second),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestRentAndReturn(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv, "bob")
	ctx := context.Background()

	rental, err := c.Rent(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rental.ID())
	assert.Equal(t, uint64(3), rental.ListingID())

	require.NoError(t, rental.Return(ctx))
	assert.Equal(t, []uint64{7}, srv.returned)

	_, err = c.Rent(ctx, 3, 9)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestBatchCalls(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv, "bob")
	ctx := context.Background()

	rentals, err := c.RentMany(ctx, pb.RentItem{ListingID: 1, Duration: 1}, pb.RentItem{ListingID: 2, Duration: 2})
	require.NoError(t, err)
	require.Len(t, rentals, 2)
	assert.Equal(t, uint64(11), rentals[1].ID())
	assert.Equal(t, uint64(2), rentals[1].ListingID())

	require.NoError(t, c.Return(ctx, 10, 11))
	assert.Equal(t, [][]uint64{{10, 11}}, srv.batched)
	assert.Empty(t, srv.returned)
}

func TestListAndBalance(t *testing.T) {
	c := newTestClient(t, &fakeServer{}, "alice")
	ctx := context.Background()

	listing, err := c.List(ctx, pb.ListTerms{Registry: "faces", Instance: "1", MaxDuration: 5, PaymentAsset: "usd"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), listing.ID())

	bal, err := c.Balance(ctx, "usd")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal.Balance)
	assert.Equal(t, uint64(50), bal.Allowance)

	anon := newTestClient(t, &fakeServer{}, "")
	_, err = anon.List(ctx, pb.ListTerms{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestWatch(t *testing.T) {
	srv := &fakeServer{events: []types.Event{
		{Seq: 1, Kind: types.EventListingCreated},
		{Seq: 2, Kind: types.EventRentalCreated},
		{Seq: 3, Kind: types.EventListingBorrowed},
	}}
	c := newTestClient(t, srv, "indexer")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	evs, errc := c.Watch(ctx, 2)

	var seqs []uint64
	for ev := range evs {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []uint64{2, 3}, seqs)
	assert.NoError(t, <-errc)
}

func TestUnimplemented(t *testing.T) {
	c := newTestClient(t, &fakeServer{}, "alice")

	err := c.Delist(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
	assert.Contains(t, err.Error(), "delist [1]")
}
