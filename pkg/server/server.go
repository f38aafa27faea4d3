package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	pb "github.com/pixperk/escrowd/api/v1"
	"github.com/pixperk/escrowd/pkg/escrow"
	"github.com/pixperk/escrowd/pkg/events"
	"github.com/pixperk/escrowd/pkg/fsm"
	"github.com/pixperk/escrowd/pkg/metrics"
	"github.com/pixperk/escrowd/pkg/payment"
	"github.com/pixperk/escrowd/pkg/raft"
	"github.com/pixperk/escrowd/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// what the server needs from a replicated node
type Node interface {
	Apply(ctx context.Context, cmd types.Command) (any, error)
	IsLeader() bool
	Leader() (string, string)
	Join(nodeID, addr string) error
	ID() string
	AppliedIndex() uint64
	RaftStats() map[string]string
	Ledger() *escrow.Ledger
	Payments() *payment.Ledger
}

var _ Node = (*raft.Node)(nil)

type Server struct {
	pb.UnimplementedEscrowServiceServer
	node     Node
	ledgerID types.Identity
	hub      *events.Hub
	archive  *events.Archive
	validate *requestValidator
	logger   *slog.Logger
}

type Option func(*Server)

// events for Watch, without a hub Watch is unavailable
func WithHub(hub *events.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// lets Watch replay from an earlier sequence
func WithArchive(archive *events.Archive) Option {
	return func(s *Server) { s.archive = archive }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// wraps the raft node into a gRPC server
func NewServer(node Node, ledgerID types.Identity, opts ...Option) *Server {
	s := &Server{
		node:     node,
		ledgerID: ledgerID,
		validate: newRequestValidator(ledgerID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// registers the service on a grpc server
func (s *Server) Register(g *grpc.Server) {
	pb.RegisterEscrowServiceServer(g, s)
}

// runs one write through raft and records its outcome
func (s *Server) write(ctx context.Context, op types.CommandType, req any, cmd types.Command) (any, error) {
	start := time.Now()

	if err := s.validate.check(req); err != nil {
		metrics.ObserveOperation(op.String(), start, err)
		return nil, err
	}
	if !s.node.IsLeader() {
		addr, _ := s.node.Leader()
		metrics.ObserveOperation(op.String(), start, raft.ErrNotLeader)
		return nil, notLeaderError(addr)
	}

	result, err := s.node.Apply(ctx, cmd)
	metrics.ObserveOperation(op.String(), start, err)
	if err != nil {
		s.logger.Debug("operation rejected", "op", op.String(), "error", err)
		if errors.Is(err, raft.ErrNotLeader) {
			addr, _ := s.node.Leader()
			return nil, notLeaderError(addr)
		}
		return nil, toGRPCError(err)
	}

	s.observeLedger()
	return result, nil
}

func (s *Server) observeLedger() {
	st := s.node.Ledger().Stats()
	escrowed := make(map[string]uint64, len(st.Escrowed))
	for asset, amount := range st.Escrowed {
		escrowed[string(asset)] = uint64(amount)
	}
	metrics.ObserveLedger(st.ActiveListings, st.ActiveRentals, escrowed)
}

func (s *Server) List(ctx context.Context, req *pb.ListRequest) (*pb.ListResponse, error) {
	result, err := s.write(ctx, types.CommandTypeList, req, types.ListCmd{
		Lender: types.Identity(req.Lender),
		Terms:  toTerms(req.Terms),
	})
	if err != nil {
		return nil, err
	}
	return &pb.ListResponse{ListingIDs: result.(escrow.ListResponse).ListingIDs}, nil
}

func (s *Server) ListMany(ctx context.Context, req *pb.ListManyRequest) (*pb.ListResponse, error) {
	terms := make([]types.ListTerms, len(req.Terms))
	for i, t := range req.Terms {
		terms[i] = toTerms(t)
	}

	result, err := s.write(ctx, types.CommandTypeListMany, req, types.ListManyCmd{
		Lender: types.Identity(req.Lender),
		Terms:  terms,
	})
	if err != nil {
		return nil, err
	}
	return &pb.ListResponse{ListingIDs: result.(escrow.ListResponse).ListingIDs}, nil
}

func (s *Server) Rent(ctx context.Context, req *pb.RentRequest) (*pb.RentResponse, error) {
	result, err := s.write(ctx, types.CommandTypeRent, req, types.RentCmd{
		Borrower:  types.Identity(req.Borrower),
		ListingID: req.ListingID,
		Duration:  req.Duration,
	})
	if err != nil {
		return nil, err
	}
	return &pb.RentResponse{RentalIDs: result.(escrow.RentResponse).RentalIDs}, nil
}

func (s *Server) RentMany(ctx context.Context, req *pb.RentManyRequest) (*pb.RentResponse, error) {
	rentals := make([]types.RentTerms, len(req.Rentals))
	for i, r := range req.Rentals {
		rentals[i] = types.RentTerms{ListingID: r.ListingID, Duration: r.Duration}
	}

	result, err := s.write(ctx, types.CommandTypeRentMany, req, types.RentManyCmd{
		Borrower: types.Identity(req.Borrower),
		Rentals:  rentals,
	})
	if err != nil {
		return nil, err
	}
	return &pb.RentResponse{RentalIDs: result.(escrow.RentResponse).RentalIDs}, nil
}

func (s *Server) Return(ctx context.Context, req *pb.ReturnRequest) (*pb.ReturnResponse, error) {
	result, err := s.write(ctx, types.CommandTypeReturn, req, types.ReturnCmd{
		Caller:   types.Identity(req.Caller),
		RentalID: req.RentalID,
	})
	if err != nil {
		return nil, err
	}
	return &pb.ReturnResponse{RentalIDs: result.(escrow.ReturnResponse).RentalIDs}, nil
}

func (s *Server) ReturnMany(ctx context.Context, req *pb.ReturnManyRequest) (*pb.ReturnResponse, error) {
	result, err := s.write(ctx, types.CommandTypeReturnMany, req, types.ReturnManyCmd{
		Caller:    types.Identity(req.Caller),
		RentalIDs: req.RentalIDs,
	})
	if err != nil {
		return nil, err
	}
	return &pb.ReturnResponse{RentalIDs: result.(escrow.ReturnResponse).RentalIDs}, nil
}

func (s *Server) Claim(ctx context.Context, req *pb.ClaimRequest) (*pb.ClaimResponse, error) {
	result, err := s.write(ctx, types.CommandTypeClaim, req, types.ClaimCmd{
		Caller:   types.Identity(req.Caller),
		RentalID: req.RentalID,
	})
	if err != nil {
		return nil, err
	}
	return &pb.ClaimResponse{RentalIDs: result.(escrow.ClaimResponse).RentalIDs}, nil
}

func (s *Server) ClaimMany(ctx context.Context, req *pb.ClaimManyRequest) (*pb.ClaimResponse, error) {
	result, err := s.write(ctx, types.CommandTypeClaimMany, req, types.ClaimManyCmd{
		Caller:    types.Identity(req.Caller),
		RentalIDs: req.RentalIDs,
	})
	if err != nil {
		return nil, err
	}
	return &pb.ClaimResponse{RentalIDs: result.(escrow.ClaimResponse).RentalIDs}, nil
}

func (s *Server) Delist(ctx context.Context, req *pb.DelistRequest) (*pb.DelistResponse, error) {
	result, err := s.write(ctx, types.CommandTypeDelist, req, types.DelistCmd{
		Caller:    types.Identity(req.Caller),
		ListingID: req.ListingID,
	})
	if err != nil {
		return nil, err
	}
	return &pb.DelistResponse{ListingIDs: result.(escrow.DelistResponse).ListingIDs}, nil
}

func (s *Server) DelistMany(ctx context.Context, req *pb.DelistManyRequest) (*pb.DelistResponse, error) {
	result, err := s.write(ctx, types.CommandTypeDelistMany, req, types.DelistManyCmd{
		Caller:     types.Identity(req.Caller),
		ListingIDs: req.ListingIDs,
	})
	if err != nil {
		return nil, err
	}
	return &pb.DelistResponse{ListingIDs: result.(escrow.DelistResponse).ListingIDs}, nil
}

// reads are served from local state and may lag the leader on followers

func (s *Server) GetListing(ctx context.Context, req *pb.GetListingRequest) (*pb.GetListingResponse, error) {
	listing, err := s.node.Ledger().GetListing(req.ListingID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &pb.GetListingResponse{Listing: listing}, nil
}

func (s *Server) GetRental(ctx context.Context, req *pb.GetRentalRequest) (*pb.GetRentalResponse, error) {
	rental, err := s.node.Ledger().GetRental(req.RentalID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &pb.GetRentalResponse{Rental: rental, DueAt: rental.DueAt()}, nil
}

func (s *Server) Counts(ctx context.Context, req *pb.CountsRequest) (*pb.CountsResponse, error) {
	st := s.node.Ledger().Stats()

	resp := &pb.CountsResponse{
		ListingCount:   st.ListingCount,
		RentalCount:    st.RentalCount,
		ActiveListings: st.ActiveListings,
		ActiveRentals:  st.ActiveRentals,
	}
	if len(st.Escrowed) > 0 {
		resp.Escrowed = make(map[string]uint64, len(st.Escrowed))
		for asset, amount := range st.Escrowed {
			resp.Escrowed[string(asset)] = uint64(amount)
		}
	}
	return resp, nil
}

func (s *Server) Balance(ctx context.Context, req *pb.BalanceRequest) (*pb.BalanceResponse, error) {
	if err := s.validate.check(req); err != nil {
		return nil, err
	}

	payments := s.node.Payments()
	holder, asset := types.Identity(req.Holder), types.AssetID(req.Asset)
	return &pb.BalanceResponse{
		Balance:   uint64(payments.BalanceOf(holder, asset)),
		Allowance: uint64(payments.Allowance(holder, s.ledgerID, asset)),
	}, nil
}

func (s *Server) MintAsset(ctx context.Context, req *pb.MintAssetRequest) (*pb.MintAssetResponse, error) {
	result, err := s.write(ctx, types.CommandTypeMintAsset, req, types.MintAssetCmd{
		Owner: types.Identity(req.Owner),
		Asset: types.AssetRef{Registry: types.RegistryID(req.Registry), Instance: types.InstanceID(req.Instance)},
	})
	if err != nil {
		return nil, err
	}

	minted := result.(fsm.MintAssetResponse)
	return &pb.MintAssetResponse{
		Owner:    string(minted.Owner),
		Registry: string(minted.Asset.Registry),
		Instance: string(minted.Asset.Instance),
	}, nil
}

func (s *Server) SetApproval(ctx context.Context, req *pb.SetApprovalRequest) (*pb.SetApprovalResponse, error) {
	operator := types.Identity(req.Operator)
	if operator == "" {
		operator = s.ledgerID
	}

	result, err := s.write(ctx, types.CommandTypeSetApproval, req, types.SetApprovalCmd{
		Owner:    types.Identity(req.Owner),
		Operator: operator,
		Approved: req.Approved,
	})
	if err != nil {
		return nil, err
	}
	return &pb.SetApprovalResponse{Approved: result.(fsm.SetApprovalResponse).Approved}, nil
}

func (s *Server) Faucet(ctx context.Context, req *pb.FaucetRequest) (*pb.FaucetResponse, error) {
	result, err := s.write(ctx, types.CommandTypeFaucet, req, types.FaucetCmd{
		To:     types.Identity(req.To),
		Asset:  types.AssetID(req.Asset),
		Amount: types.Amount(req.Amount),
	})
	if err != nil {
		return nil, err
	}
	return &pb.FaucetResponse{Balance: uint64(result.(fsm.FaucetResponse).Balance)}, nil
}

func (s *Server) ApprovePayment(ctx context.Context, req *pb.ApprovePaymentRequest) (*pb.ApprovePaymentResponse, error) {
	spender := types.Identity(req.Spender)
	if spender == "" {
		spender = s.ledgerID
	}

	result, err := s.write(ctx, types.CommandTypeApprovePayment, req, types.ApprovePaymentCmd{
		Owner:   types.Identity(req.Owner),
		Spender: spender,
		Asset:   types.AssetID(req.Asset),
		Amount:  types.Amount(req.Amount),
	})
	if err != nil {
		return nil, err
	}
	return &pb.ApprovePaymentResponse{Allowance: uint64(result.(fsm.ApprovePaymentResponse).Allowance)}, nil
}

func (s *Server) Join(ctx context.Context, req *pb.JoinRequest) (*pb.JoinResponse, error) {
	if err := s.validate.check(req); err != nil {
		return nil, err
	}
	if !s.node.IsLeader() {
		addr, _ := s.node.Leader()
		return nil, notLeaderError(addr)
	}

	if err := s.node.Join(req.NodeID, req.Addr); err != nil {
		return nil, toGRPCError(err)
	}
	s.logger.Info("node joined the cluster", "joined_id", req.NodeID, "addr", req.Addr)
	return &pb.JoinResponse{}, nil
}

func (s *Server) GetStatus(ctx context.Context, req *pb.GetStatusRequest) (*pb.GetStatusResponse, error) {
	addr, id := s.node.Leader()
	return &pb.GetStatusResponse{
		NodeID:       s.node.ID(),
		IsLeader:     s.node.IsLeader(),
		LeaderAddr:   addr,
		LeaderID:     id,
		AppliedIndex: s.node.AppliedIndex(),
		EventSeq:     s.node.Ledger().Stats().EventSeq,
		Raft:         s.node.RaftStats(),
	}, nil
}

// streams committed events, archived ones first when FromSeq is set
func (s *Server) Watch(req *pb.WatchRequest, stream grpc.ServerStreamingServer[types.Event]) error {
	if s.hub == nil {
		return status.Error(codes.Unavailable, "event stream not enabled on this node")
	}
	if req.FromSeq > 0 && s.archive == nil {
		return status.Error(codes.FailedPrecondition, "replay requires the event archive")
	}

	//subscribe before replaying so nothing falls in the gap
	live, cancel := s.hub.Subscribe()
	defer cancel()

	filter := kindFilter(req.Kinds)
	var last uint64

	if req.FromSeq > 0 {
		replay, err := s.archive.Range(req.FromSeq, 0)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		for _, ev := range replay {
			if filter(ev) {
				if err := stream.Send(&ev); err != nil {
					return err
				}
			}
			last = ev.Seq
		}
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-live:
			if !ok {
				return status.Error(codes.ResourceExhausted, "event subscriber fell behind")
			}
			if ev.Seq <= last || !filter(ev) {
				continue
			}
			if err := stream.Send(&ev); err != nil {
				return err
			}
		}
	}
}

func kindFilter(kinds []string) func(types.Event) bool {
	if len(kinds) == 0 {
		return func(types.Event) bool { return true }
	}
	set := make(map[types.EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[types.EventKind(k)] = struct{}{}
	}
	return func(ev types.Event) bool {
		_, ok := set[ev.Kind]
		return ok
	}
}

func toTerms(t pb.ListTerms) types.ListTerms {
	return types.ListTerms{
		Asset:        types.AssetRef{Registry: types.RegistryID(t.Registry), Instance: types.InstanceID(t.Instance)},
		MaxDuration:  t.MaxDuration,
		DailyPrice:   types.Amount(t.DailyPrice),
		Collateral:   types.Amount(t.Collateral),
		PaymentAsset: types.AssetID(t.PaymentAsset),
	}
}
