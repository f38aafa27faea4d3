// Package escrowv1 is the gRPC surface of the escrow ledger.
//
// Messages are plain Go structs carried by a JSON codec, the service
// descriptor below is kept by hand in the shape protoc-gen-go-grpc emits.
package escrowv1

import (
	"context"

	"github.com/pixperk/escrowd/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "escrow.v1.EscrowService"

const (
	EscrowService_List_FullMethodName           = "/escrow.v1.EscrowService/List"
	EscrowService_ListMany_FullMethodName       = "/escrow.v1.EscrowService/ListMany"
	EscrowService_Rent_FullMethodName           = "/escrow.v1.EscrowService/Rent"
	EscrowService_RentMany_FullMethodName       = "/escrow.v1.EscrowService/RentMany"
	EscrowService_Return_FullMethodName         = "/escrow.v1.EscrowService/Return"
	EscrowService_ReturnMany_FullMethodName     = "/escrow.v1.EscrowService/ReturnMany"
	EscrowService_Claim_FullMethodName          = "/escrow.v1.EscrowService/Claim"
	EscrowService_ClaimMany_FullMethodName      = "/escrow.v1.EscrowService/ClaimMany"
	EscrowService_Delist_FullMethodName         = "/escrow.v1.EscrowService/Delist"
	EscrowService_DelistMany_FullMethodName     = "/escrow.v1.EscrowService/DelistMany"
	EscrowService_GetListing_FullMethodName     = "/escrow.v1.EscrowService/GetListing"
	EscrowService_GetRental_FullMethodName      = "/escrow.v1.EscrowService/GetRental"
	EscrowService_Counts_FullMethodName         = "/escrow.v1.EscrowService/Counts"
	EscrowService_Balance_FullMethodName        = "/escrow.v1.EscrowService/Balance"
	EscrowService_MintAsset_FullMethodName      = "/escrow.v1.EscrowService/MintAsset"
	EscrowService_SetApproval_FullMethodName    = "/escrow.v1.EscrowService/SetApproval"
	EscrowService_Faucet_FullMethodName         = "/escrow.v1.EscrowService/Faucet"
	EscrowService_ApprovePayment_FullMethodName = "/escrow.v1.EscrowService/ApprovePayment"
	EscrowService_Join_FullMethodName           = "/escrow.v1.EscrowService/Join"
	EscrowService_GetStatus_FullMethodName      = "/escrow.v1.EscrowService/GetStatus"
	EscrowService_Watch_FullMethodName          = "/escrow.v1.EscrowService/Watch"
)

// EscrowServiceServer is the server API for EscrowService.
type EscrowServiceServer interface {
	List(context.Context, *ListRequest) (*ListResponse, error)
	ListMany(context.Context, *ListManyRequest) (*ListResponse, error)
	Rent(context.Context, *RentRequest) (*RentResponse, error)
	RentMany(context.Context, *RentManyRequest) (*RentResponse, error)
	Return(context.Context, *ReturnRequest) (*ReturnResponse, error)
	ReturnMany(context.Context, *ReturnManyRequest) (*ReturnResponse, error)
	Claim(context.Context, *ClaimRequest) (*ClaimResponse, error)
	ClaimMany(context.Context, *ClaimManyRequest) (*ClaimResponse, error)
	Delist(context.Context, *DelistRequest) (*DelistResponse, error)
	DelistMany(context.Context, *DelistManyRequest) (*DelistResponse, error)
	GetListing(context.Context, *GetListingRequest) (*GetListingResponse, error)
	GetRental(context.Context, *GetRentalRequest) (*GetRentalResponse, error)
	Counts(context.Context, *CountsRequest) (*CountsResponse, error)
	Balance(context.Context, *BalanceRequest) (*BalanceResponse, error)
	MintAsset(context.Context, *MintAssetRequest) (*MintAssetResponse, error)
	SetApproval(context.Context, *SetApprovalRequest) (*SetApprovalResponse, error)
	Faucet(context.Context, *FaucetRequest) (*FaucetResponse, error)
	ApprovePayment(context.Context, *ApprovePaymentRequest) (*ApprovePaymentResponse, error)
	Join(context.Context, *JoinRequest) (*JoinResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	Watch(*WatchRequest, grpc.ServerStreamingServer[types.Event]) error
	mustEmbedUnimplementedEscrowServiceServer()
}

// UnimplementedEscrowServiceServer must be embedded to have forward
// compatible implementations.
type UnimplementedEscrowServiceServer struct{}

func (UnimplementedEscrowServiceServer) List(context.Context, *ListRequest) (*ListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method List not implemented")
}
func (UnimplementedEscrowServiceServer) ListMany(context.Context, *ListManyRequest) (*ListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListMany not implemented")
}
func (UnimplementedEscrowServiceServer) Rent(context.Context, *RentRequest) (*RentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Rent not implemented")
}
func (UnimplementedEscrowServiceServer) RentMany(context.Context, *RentManyRequest) (*RentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RentMany not implemented")
}
func (UnimplementedEscrowServiceServer) Return(context.Context, *ReturnRequest) (*ReturnResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Return not implemented")
}
func (UnimplementedEscrowServiceServer) ReturnMany(context.Context, *ReturnManyRequest) (*ReturnResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReturnMany not implemented")
}
func (UnimplementedEscrowServiceServer) Claim(context.Context, *ClaimRequest) (*ClaimResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Claim not implemented")
}
func (UnimplementedEscrowServiceServer) ClaimMany(context.Context, *ClaimManyRequest) (*ClaimResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ClaimMany not implemented")
}
func (UnimplementedEscrowServiceServer) Delist(context.Context, *DelistRequest) (*DelistResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Delist not implemented")
}
func (UnimplementedEscrowServiceServer) DelistMany(context.Context, *DelistManyRequest) (*DelistResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DelistMany not implemented")
}
func (UnimplementedEscrowServiceServer) GetListing(context.Context, *GetListingRequest) (*GetListingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetListing not implemented")
}
func (UnimplementedEscrowServiceServer) GetRental(context.Context, *GetRentalRequest) (*GetRentalResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRental not implemented")
}
func (UnimplementedEscrowServiceServer) Counts(context.Context, *CountsRequest) (*CountsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Counts not implemented")
}
func (UnimplementedEscrowServiceServer) Balance(context.Context, *BalanceRequest) (*BalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Balance not implemented")
}
func (UnimplementedEscrowServiceServer) MintAsset(context.Context, *MintAssetRequest) (*MintAssetResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MintAsset not implemented")
}
func (UnimplementedEscrowServiceServer) SetApproval(context.Context, *SetApprovalRequest) (*SetApprovalResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetApproval not implemented")
}
func (UnimplementedEscrowServiceServer) Faucet(context.Context, *FaucetRequest) (*FaucetResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Faucet not implemented")
}
func (UnimplementedEscrowServiceServer) ApprovePayment(context.Context, *ApprovePaymentRequest) (*ApprovePaymentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ApprovePayment not implemented")
}
func (UnimplementedEscrowServiceServer) Join(context.Context, *JoinRequest) (*JoinResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Join not implemented")
}
func (UnimplementedEscrowServiceServer) GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}
func (UnimplementedEscrowServiceServer) Watch(*WatchRequest, grpc.ServerStreamingServer[types.Event]) error {
	return status.Error(codes.Unimplemented, "method Watch not implemented")
}
func (UnimplementedEscrowServiceServer) mustEmbedUnimplementedEscrowServiceServer() {}

func RegisterEscrowServiceServer(s grpc.ServiceRegistrar, srv EscrowServiceServer) {
	s.RegisterService(&EscrowService_ServiceDesc, srv)
}

// builds the unary handler for one method
func unary[Req, Resp any](method string, call func(EscrowServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EscrowServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EscrowServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _EscrowService_Watch_Handler(srv any, stream grpc.ServerStream) error {
	m := new(WatchRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EscrowServiceServer).Watch(m, &grpc.GenericServerStream[WatchRequest, types.Event]{ServerStream: stream})
}

// EscrowService_ServiceDesc is the grpc.ServiceDesc for EscrowService.
var EscrowService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EscrowServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unary(EscrowService_List_FullMethodName, EscrowServiceServer.List)},
		{MethodName: "ListMany", Handler: unary(EscrowService_ListMany_FullMethodName, EscrowServiceServer.ListMany)},
		{MethodName: "Rent", Handler: unary(EscrowService_Rent_FullMethodName, EscrowServiceServer.Rent)},
		{MethodName: "RentMany", Handler: unary(EscrowService_RentMany_FullMethodName, EscrowServiceServer.RentMany)},
		{MethodName: "Return", Handler: unary(EscrowService_Return_FullMethodName, EscrowServiceServer.Return)},
		{MethodName: "ReturnMany", Handler: unary(EscrowService_ReturnMany_FullMethodName, EscrowServiceServer.ReturnMany)},
		{MethodName: "Claim", Handler: unary(EscrowService_Claim_FullMethodName, EscrowServiceServer.Claim)},
		{MethodName: "ClaimMany", Handler: unary(EscrowService_ClaimMany_FullMethodName, EscrowServiceServer.ClaimMany)},
		{MethodName: "Delist", Handler: unary(EscrowService_Delist_FullMethodName, EscrowServiceServer.Delist)},
		{MethodName: "DelistMany", Handler: unary(EscrowService_DelistMany_FullMethodName, EscrowServiceServer.DelistMany)},
		{MethodName: "GetListing", Handler: unary(EscrowService_GetListing_FullMethodName, EscrowServiceServer.GetListing)},
		{MethodName: "GetRental", Handler: unary(EscrowService_GetRental_FullMethodName, EscrowServiceServer.GetRental)},
		{MethodName: "Counts", Handler: unary(EscrowService_Counts_FullMethodName, EscrowServiceServer.Counts)},
		{MethodName: "Balance", Handler: unary(EscrowService_Balance_FullMethodName, EscrowServiceServer.Balance)},
		{MethodName: "MintAsset", Handler: unary(EscrowService_MintAsset_FullMethodName, EscrowServiceServer.MintAsset)},
		{MethodName: "SetApproval", Handler: unary(EscrowService_SetApproval_FullMethodName, EscrowServiceServer.SetApproval)},
		{MethodName: "Faucet", Handler: unary(EscrowService_Faucet_FullMethodName, EscrowServiceServer.Faucet)},
		{MethodName: "ApprovePayment", Handler: unary(EscrowService_ApprovePayment_FullMethodName, EscrowServiceServer.ApprovePayment)},
		{MethodName: "Join", Handler: unary(EscrowService_Join_FullMethodName, EscrowServiceServer.Join)},
		{MethodName: "GetStatus", Handler: unary(EscrowService_GetStatus_FullMethodName, EscrowServiceServer.GetStatus)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       _EscrowService_Watch_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "escrow/v1/escrow.proto",
}
