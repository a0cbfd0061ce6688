package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "team", want: KindTeam},
		{in: "teams", want: KindTeam},
		{in: " Events ", want: KindEvent},
		{in: "event", want: KindEvent},
		{in: "matches", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindForTable(t *testing.T) {
	k, err := KindForTable("teams")
	require.NoError(t, err)
	assert.Equal(t, KindTeam, k)

	k, err = KindForTable("events")
	require.NoError(t, err)
	assert.Equal(t, KindEvent, k)

	_, err = KindForTable("stadiums")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestKind_IndexAndTable(t *testing.T) {
	assert.Equal(t, "teams", KindTeam.Index())
	assert.Equal(t, "teams", KindTeam.Table())
	assert.Equal(t, "events", KindEvent.Index())
	assert.Equal(t, "events", KindEvent.Table())
	assert.False(t, Kind(0).Valid())
	assert.Equal(t, "", Kind(7).Table())
}

func TestNormalize_Team(t *testing.T) {
	raw := []byte(`{"id":1,"team_number_yearly":100,"team_name_calc":"Alpha","team_city":"Nowhere","fk_program_seasons":251}`)

	rec, err := Normalize(KindTeam, raw)
	require.NoError(t, err)

	team, ok := rec.(*Team)
	require.True(t, ok, "Should produce a *Team")
	assert.Equal(t, int64(1), *team.ID)
	assert.Equal(t, int64(100), *team.Number)
	assert.Equal(t, "Alpha", *team.Name)
	assert.Equal(t, "1", team.RecordID())
}

func TestNormalize_TeamNicknameFallback(t *testing.T) {
	rec, err := Normalize(KindTeam, []byte(`{"id":2,"team_number_yearly":200,"team_nickname":"Beta"}`))
	require.NoError(t, err)

	team := rec.(*Team)
	assert.Equal(t, "Beta", *team.Name)

	rec, err = Normalize(KindTeam, []byte(`{"id":3,"team_name_calc":"","team_nickname":"Gamma"}`))
	require.NoError(t, err)
	assert.Equal(t, "Gamma", *rec.(*Team).Name, "Empty team_name_calc should fall back to nickname")
}

func TestNormalize_TeamMissingFields(t *testing.T) {
	rec, err := Normalize(KindTeam, []byte(`{}`))
	require.NoError(t, err)

	team := rec.(*Team)
	assert.Nil(t, team.ID)
	assert.Nil(t, team.Number)
	assert.Nil(t, team.Name)
	assert.Equal(t, "", team.RecordID())

	out, err := json.Marshal(team)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"number":null,"name":null}`, string(out))
}

func TestNormalize_LooseTypes(t *testing.T) {
	rec, err := Normalize(KindTeam, []byte(`{"id":"42","team_number_yearly":7.0,"team_name_calc":{"nested":true}}`))
	require.NoError(t, err, "Odd field types should never fail the hit")

	team := rec.(*Team)
	assert.Equal(t, int64(42), *team.ID)
	assert.Equal(t, int64(7), *team.Number)
	assert.Nil(t, team.Name)
}

func TestNormalize_Event(t *testing.T) {
	raw := []byte(`{
		"id": 9001,
		"event_name": "Maple Qualifier",
		"event_code": "USMAQ1",
		"date_start": "2017-11-04T00:00:00",
		"date_end": "2017-11-05",
		"event_season": 2017,
		"event_subtype": "Qualifier",
		"event_address1": "1 Main St",
		"event_postalcode": "02134",
		"event_city": "Boston",
		"event_stateprov": "MA",
		"countryCode": "US",
		"event_type": "FTC"
	}`)

	rec, err := Normalize(KindEvent, raw)
	require.NoError(t, err)

	ev, ok := rec.(*Event)
	require.True(t, ok)
	assert.Equal(t, int64(9001), *ev.ID)
	assert.Equal(t, "Maple Qualifier", *ev.Name)
	assert.Equal(t, "USMAQ1", *ev.Venue)
	assert.Equal(t, time.Date(2017, 11, 4, 0, 0, 0, 0, time.UTC), *ev.Date.Start)
	assert.Equal(t, time.Date(2017, 11, 5, 0, 0, 0, 0, time.UTC), *ev.Date.End)
	assert.Equal(t, int64(2017), *ev.Season)
	assert.Equal(t, "Qualifier", *ev.Type)
	assert.Equal(t, "1 Main St", *ev.Location.Street)
	assert.Equal(t, "02134", *ev.Location.PostalCode)
	assert.Equal(t, "Boston", *ev.Location.City)
	assert.Equal(t, "MA", *ev.Location.State)
	assert.Equal(t, "US", *ev.Location.Country)
}

func TestNormalize_EventBadDate(t *testing.T) {
	rec, err := Normalize(KindEvent, []byte(`{"id":1,"date_start":"next tuesday","date_end":12}`))
	require.NoError(t, err)

	ev := rec.(*Event)
	assert.Nil(t, ev.Date.Start)
	assert.Nil(t, ev.Date.End)
	assert.Nil(t, ev.Location.City)
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize(KindTeam, []byte(`[1,2,3]`))
	assert.Error(t, err, "An array is not a source document")

	_, err = Normalize(Kind(99), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNormalizeAll(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"id":1,"team_number_yearly":100,"team_name_calc":"Alpha"}`),
		json.RawMessage(`"not an object"`),
		json.RawMessage(`{"id":2,"team_number_yearly":200,"team_nickname":"Beta"}`),
	}

	records, errs := NormalizeAll(KindTeam, raws)
	assert.Len(t, records, 2)
	assert.Len(t, errs, 1)
	assert.Equal(t, "2", records[1].RecordID())
}
