package status_api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
)

// RegisterTripStatusServiceHandlerFromEndpoint dials grpcAddr and serves
//
//	GET /v1/trips/{reference}/status
//	GET /v1/trips/{reference}/events?limit=&offset=
//
// on mux. The connection is closed when ctx is done.
func RegisterTripStatusServiceHandlerFromEndpoint(ctx context.Context, mux *runtime.ServeMux, grpcAddr string, opts []grpc.DialOption) error {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(grpcAddr, opts...)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return RegisterTripStatusServiceHandlerClient(mux, NewClient(conn))
}

func RegisterTripStatusServiceHandlerClient(mux *runtime.ServeMux, client *Client) error {
	err := mux.HandlePath(http.MethodGet, "/v1/trips/{reference}/status", func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		resp, err := client.GetCurrentStatus(r.Context(), params["reference"])
		forward(mux, w, r, resp, err)
	})
	if err != nil {
		return err
	}

	return mux.HandlePath(http.MethodGet, "/v1/trips/{reference}/events", func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		resp, err := client.ListStatusEvents(r.Context(), params["reference"], limit, offset)
		forward(mux, w, r, resp, err)
	})
}

func forward(mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, resp proto.Message, err error) {
	_, outbound := runtime.MarshalerForRequest(mux, r)
	if err != nil {
		runtime.HTTPError(r.Context(), mux, outbound, w, r, err)
		return
	}
	runtime.ForwardResponseMessage(r.Context(), mux, outbound, w, r, resp)
}
