package escrowv1

import (
	"context"

	"github.com/pixperk/escrowd/pkg/types"
	"google.golang.org/grpc"
)

// EscrowServiceClient is the client API for EscrowService.
type EscrowServiceClient interface {
	List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error)
	ListMany(ctx context.Context, in *ListManyRequest, opts ...grpc.CallOption) (*ListResponse, error)
	Rent(ctx context.Context, in *RentRequest, opts ...grpc.CallOption) (*RentResponse, error)
	RentMany(ctx context.Context, in *RentManyRequest, opts ...grpc.CallOption) (*RentResponse, error)
	Return(ctx context.Context, in *ReturnRequest, opts ...grpc.CallOption) (*ReturnResponse, error)
	ReturnMany(ctx context.Context, in *ReturnManyRequest, opts ...grpc.CallOption) (*ReturnResponse, error)
	Claim(ctx context.Context, in *ClaimRequest, opts ...grpc.CallOption) (*ClaimResponse, error)
	ClaimMany(ctx context.Context, in *ClaimManyRequest, opts ...grpc.CallOption) (*ClaimResponse, error)
	Delist(ctx context.Context, in *DelistRequest, opts ...grpc.CallOption) (*DelistResponse, error)
	DelistMany(ctx context.Context, in *DelistManyRequest, opts ...grpc.CallOption) (*DelistResponse, error)
	GetListing(ctx context.Context, in *GetListingRequest, opts ...grpc.CallOption) (*GetListingResponse, error)
	GetRental(ctx context.Context, in *GetRentalRequest, opts ...grpc.CallOption) (*GetRentalResponse, error)
	Counts(ctx context.Context, in *CountsRequest, opts ...grpc.CallOption) (*CountsResponse, error)
	Balance(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	MintAsset(ctx context.Context, in *MintAssetRequest, opts ...grpc.CallOption) (*MintAssetResponse, error)
	SetApproval(ctx context.Context, in *SetApprovalRequest, opts ...grpc.CallOption) (*SetApprovalResponse, error)
	Faucet(ctx context.Context, in *FaucetRequest, opts ...grpc.CallOption) (*FaucetResponse, error)
	ApprovePayment(ctx context.Context, in *ApprovePaymentRequest, opts ...grpc.CallOption) (*ApprovePaymentResponse, error)
	Join(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error)
	GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error)
	Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[types.Event], error)
}

type escrowServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewEscrowServiceClient(cc grpc.ClientConnInterface) EscrowServiceClient {
	return &escrowServiceClient{cc}
}

// every call carries the json content-subtype so the server picks the codec
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *escrowServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, EscrowService_List_FullMethodName, in, opts)
}

func (c *escrowServiceClient) ListMany(ctx context.Context, in *ListManyRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, EscrowService_ListMany_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Rent(ctx context.Context, in *RentRequest, opts ...grpc.CallOption) (*RentResponse, error) {
	return invoke[RentResponse](ctx, c.cc, EscrowService_Rent_FullMethodName, in, opts)
}

func (c *escrowServiceClient) RentMany(ctx context.Context, in *RentManyRequest, opts ...grpc.CallOption) (*RentResponse, error) {
	return invoke[RentResponse](ctx, c.cc, EscrowService_RentMany_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Return(ctx context.Context, in *ReturnRequest, opts ...grpc.CallOption) (*ReturnResponse, error) {
	return invoke[ReturnResponse](ctx, c.cc, EscrowService_Return_FullMethodName, in, opts)
}

func (c *escrowServiceClient) ReturnMany(ctx context.Context, in *ReturnManyRequest, opts ...grpc.CallOption) (*ReturnResponse, error) {
	return invoke[ReturnResponse](ctx, c.cc, EscrowService_ReturnMany_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Claim(ctx context.Context, in *ClaimRequest, opts ...grpc.CallOption) (*ClaimResponse, error) {
	return invoke[ClaimResponse](ctx, c.cc, EscrowService_Claim_FullMethodName, in, opts)
}

func (c *escrowServiceClient) ClaimMany(ctx context.Context, in *ClaimManyRequest, opts ...grpc.CallOption) (*ClaimResponse, error) {
	return invoke[ClaimResponse](ctx, c.cc, EscrowService_ClaimMany_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Delist(ctx context.Context, in *DelistRequest, opts ...grpc.CallOption) (*DelistResponse, error) {
	return invoke[DelistResponse](ctx, c.cc, EscrowService_Delist_FullMethodName, in, opts)
}

func (c *escrowServiceClient) DelistMany(ctx context.Context, in *DelistManyRequest, opts ...grpc.CallOption) (*DelistResponse, error) {
	return invoke[DelistResponse](ctx, c.cc, EscrowService_DelistMany_FullMethodName, in, opts)
}

func (c *escrowServiceClient) GetListing(ctx context.Context, in *GetListingRequest, opts ...grpc.CallOption) (*GetListingResponse, error) {
	return invoke[GetListingResponse](ctx, c.cc, EscrowService_GetListing_FullMethodName, in, opts)
}

func (c *escrowServiceClient) GetRental(ctx context.Context, in *GetRentalRequest, opts ...grpc.CallOption) (*GetRentalResponse, error) {
	return invoke[GetRentalResponse](ctx, c.cc, EscrowService_GetRental_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Counts(ctx context.Context, in *CountsRequest, opts ...grpc.CallOption) (*CountsResponse, error) {
	return invoke[CountsResponse](ctx, c.cc, EscrowService_Counts_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Balance(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c.cc, EscrowService_Balance_FullMethodName, in, opts)
}

func (c *escrowServiceClient) MintAsset(ctx context.Context, in *MintAssetRequest, opts ...grpc.CallOption) (*MintAssetResponse, error) {
	return invoke[MintAssetResponse](ctx, c.cc, EscrowService_MintAsset_FullMethodName, in, opts)
}

func (c *escrowServiceClient) SetApproval(ctx context.Context, in *SetApprovalRequest, opts ...grpc.CallOption) (*SetApprovalResponse, error) {
	return invoke[SetApprovalResponse](ctx, c.cc, EscrowService_SetApproval_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Faucet(ctx context.Context, in *FaucetRequest, opts ...grpc.CallOption) (*FaucetResponse, error) {
	return invoke[FaucetResponse](ctx, c.cc, EscrowService_Faucet_FullMethodName, in, opts)
}

func (c *escrowServiceClient) ApprovePayment(ctx context.Context, in *ApprovePaymentRequest, opts ...grpc.CallOption) (*ApprovePaymentResponse, error) {
	return invoke[ApprovePaymentResponse](ctx, c.cc, EscrowService_ApprovePayment_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Join(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error) {
	return invoke[JoinResponse](ctx, c.cc, EscrowService_Join_FullMethodName, in, opts)
}

func (c *escrowServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, EscrowService_GetStatus_FullMethodName, in, opts)
}

func (c *escrowServiceClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[types.Event], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	stream, err := c.cc.NewStream(ctx, &EscrowService_ServiceDesc.Streams[0], EscrowService_Watch_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchRequest, types.Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
