package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	pb "github.com/pixperk/escrowd/api/v1"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// REST and websocket front for the gRPC service
type Server struct {
	httpServer *http.Server
	grpcAddr   string
	conn       *grpc.ClientConn
	logger     *slog.Logger
}

func NewServer(httpAddr, grpcAddr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              httpAddr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		grpcAddr: grpcAddr,
		logger:   logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	conn, err := grpc.NewClient(s.grpcAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.Codec)),
	)
	if err != nil {
		return fmt.Errorf("failed to dial grpc server: %w", err)
	}
	s.conn = conn

	s.httpServer.Handler = NewHandler(pb.NewEscrowServiceClient(conn), s.logger)
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP gateway: %w", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}

type handler struct {
	client pb.EscrowServiceClient
	logger *slog.Logger
}

// routes every service method under /v1
func NewHandler(client pb.EscrowServiceClient, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handler{client: client, logger: logger}

	router := httprouter.New()

	router.POST("/v1/listings", call(h, client.List, http.StatusCreated, nil))
	router.GET("/v1/listings/:id", call(h, client.GetListing, http.StatusOK,
		func(req *pb.GetListingRequest, r *http.Request, ps httprouter.Params) (err error) {
			req.ListingID, err = idParam(ps)
			return err
		}))
	router.POST("/v1/listings/:id/delist", call(h, client.Delist, http.StatusOK,
		func(req *pb.DelistRequest, r *http.Request, ps httprouter.Params) (err error) {
			if err = decode(r, req); err != nil {
				return err
			}
			req.ListingID, err = idParam(ps)
			return err
		}))

	router.POST("/v1/rentals", call(h, client.Rent, http.StatusCreated, nil))
	router.GET("/v1/rentals/:id", call(h, client.GetRental, http.StatusOK,
		func(req *pb.GetRentalRequest, r *http.Request, ps httprouter.Params) (err error) {
			req.RentalID, err = idParam(ps)
			return err
		}))
	router.POST("/v1/rentals/:id/return", call(h, client.Return, http.StatusOK,
		func(req *pb.ReturnRequest, r *http.Request, ps httprouter.Params) (err error) {
			if err = decode(r, req); err != nil {
				return err
			}
			req.RentalID, err = idParam(ps)
			return err
		}))
	router.POST("/v1/rentals/:id/claim", call(h, client.Claim, http.StatusOK,
		func(req *pb.ClaimRequest, r *http.Request, ps httprouter.Params) (err error) {
			if err = decode(r, req); err != nil {
				return err
			}
			req.RentalID, err = idParam(ps)
			return err
		}))

	router.POST("/v1/batch/listings", call(h, client.ListMany, http.StatusCreated, nil))
	router.POST("/v1/batch/rentals", call(h, client.RentMany, http.StatusCreated, nil))
	router.POST("/v1/batch/returns", call(h, client.ReturnMany, http.StatusOK, nil))
	router.POST("/v1/batch/claims", call(h, client.ClaimMany, http.StatusOK, nil))
	router.POST("/v1/batch/delistings", call(h, client.DelistMany, http.StatusOK, nil))

	router.GET("/v1/counts", call(h, client.Counts, http.StatusOK, none[pb.CountsRequest]))
	router.GET("/v1/balances/:holder/:asset", call(h, client.Balance, http.StatusOK,
		func(req *pb.BalanceRequest, r *http.Request, ps httprouter.Params) error {
			req.Holder = ps.ByName("holder")
			req.Asset = ps.ByName("asset")
			return nil
		}))

	router.POST("/v1/admin/assets", call(h, client.MintAsset, http.StatusCreated, nil))
	router.POST("/v1/admin/approvals", call(h, client.SetApproval, http.StatusOK, nil))
	router.POST("/v1/admin/faucet", call(h, client.Faucet, http.StatusOK, nil))
	router.POST("/v1/admin/allowances", call(h, client.ApprovePayment, http.StatusOK, nil))

	router.POST("/v1/cluster/join", call(h, client.Join, http.StatusOK, nil))
	router.GET("/v1/cluster/status", call(h, client.GetStatus, http.StatusOK, none[pb.GetStatusRequest]))

	router.GET("/v1/events", h.events)

	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.GET("/healthz", h.health)

	return router
}

// builds a handler that binds the request, calls the service and writes the reply
// a nil binder decodes the json body
func call[Req, Resp any](
	h *handler,
	fn func(context.Context, *Req, ...grpc.CallOption) (*Resp, error),
	okStatus int,
	bind func(*Req, *http.Request, httprouter.Params) error,
) httprouter.Handle {
	if bind == nil {
		bind = func(req *Req, r *http.Request, _ httprouter.Params) error {
			return decode(r, req)
		}
	}

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		req := new(Req)
		if err := bind(req, r, ps); err != nil {
			h.writeError(w, r, status.Error(codes.InvalidArgument, err.Error()))
			return
		}

		resp, err := fn(r.Context(), req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, okStatus, resp)
	}
}

func none[Req any](*Req, *http.Request, httprouter.Params) error { return nil }

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func idParam(ps httprouter.Params) (uint64, error) {
	id, err := strconv.ParseUint(ps.ByName("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", ps.ByName("id"))
	}
	return id, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *handler) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	st := status.Convert(err)
	code := httpStatus(st.Code())
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, code, errorResponse{Error: st.Message(), Code: st.Code().String()})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st, err := h.client.GetStatus(ctx, &pb.GetStatusRequest{})
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"node_id":   st.NodeID,
		"is_leader": st.IsLeader,
	})
}
