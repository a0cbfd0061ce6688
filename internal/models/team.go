package models

import "strconv"

// Team is the normalized team record stored in the teams table
type Team struct {
	ID     *int64  `json:"id"`
	Number *int64  `json:"number"`
	Name   *string `json:"name"`
}

// Kind implements Record
func (t *Team) Kind() Kind { return KindTeam }

// RecordID implements Record
func (t *Team) RecordID() string { return idString(t.ID) }

// TeamSource is a team document as returned by the search index
type TeamSource struct {
	ID               sourceInt    `json:"id"`
	TeamNumberYearly sourceInt    `json:"team_number_yearly"`
	TeamNameCalc     sourceString `json:"team_name_calc"`
	TeamNickname     sourceString `json:"team_nickname"`
}

// ToTeam converts TeamSource (from the index) to the Team model.
// team_name_calc wins when set; older documents only carry team_nickname.
func (ts *TeamSource) ToTeam() *Team {
	team := &Team{
		ID:     ts.ID.ptr(),
		Number: ts.TeamNumberYearly.ptr(),
	}

	switch {
	case ts.TeamNameCalc.present():
		team.Name = ts.TeamNameCalc.ptr()
	case ts.TeamNickname.present():
		team.Name = ts.TeamNickname.ptr()
	default:
		team.Name = ts.TeamNameCalc.ptr()
	}

	return team
}

func idString(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
