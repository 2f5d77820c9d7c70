package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/engine"
)

func TestIndexUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Index
	}{
		{`2`, Index{Slot: 2}},
		{`"3"`, Index{Slot: 3}},
		{`"master"`, Index{Master: true}},
		{`"MASTER"`, Index{Master: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got Index
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad Index
	assert.ErrorIs(t, json.Unmarshal([]byte(`"first"`), &bad), ErrInvalidCommand)
	assert.ErrorIs(t, json.Unmarshal([]byte(`true`), &bad), ErrInvalidCommand)
}

func TestIndexMarshalAndEngine(t *testing.T) {
	b, err := json.Marshal(Master())
	require.NoError(t, err)
	assert.JSONEq(t, `"master"`, string(b))

	b, err = json.Marshal(Slot(1))
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(b))

	assert.Equal(t, engine.Master, Master().Engine())
	assert.Equal(t, 2, Slot(2).Engine())
	assert.Equal(t, "master", Master().String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"start", Command{Name: NameStart}, nil},
		{"complete ok", Command{Name: NameComplete, Index: Slot(3)}, nil},
		{"complete no index", Command{Name: NameComplete}, ErrInvalidCommand},
		{"complete out of range", Command{Name: NameComplete, Index: Slot(4)}, ErrInvalidCommand},
		{"complete negative", Command{Name: NameComplete, Index: Slot(-1)}, ErrInvalidCommand},
		{"resume master", Command{Name: NameResume, Index: Master()}, ErrInvalidCommand},
		{"edit master", Command{Name: NameEditTime, Index: Master(), NewTime: "1:00"}, nil},
		{"edit malformed time passes", Command{Name: NameEditTime, Index: Slot(0), NewTime: "abc"}, nil},
		{"edit no index", Command{Name: NameEditTime, NewTime: "1:00"}, ErrInvalidCommand},
		{"unknown", Command{Name: "launchRocket"}, ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	cmd, err := Decode(NameStart, nil)
	require.NoError(t, err)
	assert.Equal(t, Command{Name: NameStart}, cmd)

	cmd, err = Decode(NameResume, []byte(`"2"`))
	require.NoError(t, err)
	require.NotNil(t, cmd.Index)
	assert.Equal(t, 2, cmd.Index.Slot)

	cmd, err = Decode(NameComplete, []byte(`{"index":1,"forfeit":true}`))
	require.NoError(t, err)
	assert.Equal(t, 1, cmd.Index.Slot)
	assert.True(t, cmd.Forfeit)

	cmd, err = Decode(NameEditTime, []byte(` {"index":"master","newTime":"1:02:03"} `))
	require.NoError(t, err)
	assert.True(t, cmd.Index.Master)
	assert.Equal(t, "1:02:03", cmd.NewTime)

	_, err = Decode(NameComplete, []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = Decode(NameComplete, []byte(`{"index":`))
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = Decode("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
