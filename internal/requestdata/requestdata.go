package requestdata

import (
	"context"
)

type key struct{}

var requestDataKey key

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData is what the auth middleware learned about the caller.
// Agent requests carry no participant; observer requests carry the room
// their token grants.
type RequestData struct {
	TokenString string
	Agent       bool
	Participant string
	Room        string
}
