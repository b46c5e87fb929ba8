package sinks

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreamAdder struct {
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeStreamAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1709285400000-0")
	}
	return cmd
}

func TestRedisStreamSink_StreamKey(t *testing.T) {
	sink := newRedisStreamSink(&fakeStreamAdder{}, "audit", 0)

	tests := []struct {
		entityType string
		want       string
	}{
		{entityType: "Employee", want: "audit:employees"},
		{entityType: "Salary", want: "audit:salaries"},
		{entityType: "Person", want: "audit:people"},
	}
	for _, tt := range tests {
		t.Run(tt.entityType, func(t *testing.T) {
			assert.Equal(t, tt.want, sink.StreamKey(tt.entityType))
		})
	}
}

func TestRedisStreamSink_Append(t *testing.T) {
	client := &fakeStreamAdder{}
	sink := newRedisStreamSink(client, "", 1000)

	record := updateRecord()
	require.NoError(t, sink.Append(context.Background(), record))

	require.Len(t, client.calls, 1)
	args := client.calls[0]
	assert.Equal(t, "audit:employees", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]any)
	assert.Equal(t, record.ID.String(), values["record_id"])
	assert.Equal(t, "UPDATE", values["action"])
	assert.Contains(t, values["record"], `"path":"name"`)

	assert.NoError(t, sink.Close())
}

func TestRedisStreamSink_AppendError(t *testing.T) {
	sink := newRedisStreamSink(&fakeStreamAdder{err: errors.New("LOADING Redis is loading the dataset in memory")}, "audit", 0)

	err := sink.Append(context.Background(), updateRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis XADD audit:employees")
}
