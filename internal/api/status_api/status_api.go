package status_api

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/BearBump/TripWatch/internal/models"
	"github.com/BearBump/TripWatch/internal/services/statusview"
	"github.com/BearBump/TripWatch/internal/storage/pgstatus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type StatusReader interface {
	GetCurrentStatus(ctx context.Context, reference string) (*models.StatusRecord, error)
	ListStatusEvents(ctx context.Context, reference string, limit, offset int) ([]*models.StatusEvent, error)
}

type StatusAPI struct {
	svc StatusReader
}

var _ TripStatusServiceServer = (*StatusAPI)(nil)

func New(svc StatusReader) *StatusAPI {
	return &StatusAPI{svc: svc}
}

func (a *StatusAPI) GetCurrentStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	rec, err := a.svc.GetCurrentStatus(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	m, err := toMap(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (a *StatusAPI) ListStatusEvents(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	fields := req.GetFields()
	ref := fields["reference"].GetStringValue()
	limit := int(fields["limit"].GetNumberValue())
	offset := int(fields["offset"].GetNumberValue())

	evs, err := a.svc.ListStatusEvents(ctx, ref, limit, offset)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(evs))
	for _, e := range evs {
		m, err := toMap(e)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		items = append(items, m)
	}
	out, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toMap goes through JSON so the wire shape matches the models' json tags.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toStatus(err error) error {
	switch {
	case stderrors.Is(err, statusview.ErrInvalidReference):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, pgstatus.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case stderrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
