package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	pb "github.com/pixperk/escrowd/api/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// relays the Watch stream over a websocket, one json event per message
// query: from_seq=N replays from N, kind=... (repeatable) filters
func (h *handler) events(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := &pb.WatchRequest{Kinds: r.URL.Query()["kind"]}
	if s := r.URL.Query().Get("from_seq"); s != "" {
		seq, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			h.writeError(w, r, status.Errorf(codes.InvalidArgument, "invalid from_seq %q", s))
			return
		}
		req.FromSeq = seq
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	//the reader only notices the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	stream, err := h.client.Watch(ctx, req)
	if err != nil {
		h.closeWith(conn, err)
		return
	}

	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				h.closeWith(conn, nil)
			} else {
				h.closeWith(conn, err)
			}
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (h *handler) closeWith(conn *websocket.Conn, err error) {
	code, text := websocket.CloseNormalClosure, ""
	if err != nil {
		code, text = websocket.CloseInternalServerErr, status.Convert(err).Message()
		if status.Code(err) == codes.Unavailable {
			code = websocket.CloseTryAgainLater
		}
	}
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
