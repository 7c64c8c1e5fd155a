package command

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Command is one decoded control request. The set is closed; anything the
// decoder does not recognize becomes UnknownCommand.
type Command interface {
	commandName() string
}

type PauseCommand struct{}

type ResumeCommand struct{}

type StopCommand struct{}

type StatusCommand struct{}

// UpdateFiltersCommand carries a partial exclusion-settings update. Nil
// fields leave the corresponding setting untouched.
type UpdateFiltersCommand struct {
	Processes       []string
	Titles          []string
	IgnoreProtected *bool
}

// SearchCommand queries the relational catalog. StartTime and EndTime are
// epoch seconds.
type SearchCommand struct {
	Query        string
	Limit        int
	Offset       int
	Fuzzy        bool
	ProcessNames []string
	StartTime    *float64
	EndTime      *float64
}

// SemanticSearchCommand queries the embedding index, with the same
// process and time filters applied after the fact.
type SemanticSearchCommand struct {
	Query        string
	Limit        int
	Offset       int
	ProcessNames []string
	StartTime    *float64
	EndTime      *float64
}

type ListProcessesCommand struct {
	Limit int
}

// GetImageCommand fetches raw image bytes by catalog id or by path.
type GetImageCommand struct {
	ID   *int64
	Path string
}

// GetTimelineCommand lists screenshots in a time range. Values above the
// plausible-seconds threshold are reinterpreted as milliseconds.
type GetTimelineCommand struct {
	StartTime float64
	EndTime   float64
}

type GetDetailsCommand struct {
	ID   *int64
	Path string
}

type DeleteScreenshotCommand struct {
	ScreenshotID *int64
}

// DeleteRangeCommand deletes screenshots between two epoch MILLISECOND
// bounds. The unit differs from SearchCommand's seconds on purpose; the
// wire contract predates this implementation.
type DeleteRangeCommand struct {
	StartTime *float64
	EndTime   *float64
}

type UnknownCommand struct {
	Name string
}

func (PauseCommand) commandName() string            { return "pause" }
func (ResumeCommand) commandName() string           { return "resume" }
func (StopCommand) commandName() string             { return "stop" }
func (StatusCommand) commandName() string           { return "status" }
func (UpdateFiltersCommand) commandName() string    { return "update_filters" }
func (SearchCommand) commandName() string           { return "search" }
func (SemanticSearchCommand) commandName() string   { return "search_nl" }
func (ListProcessesCommand) commandName() string    { return "list_processes" }
func (GetImageCommand) commandName() string         { return "get_image" }
func (GetTimelineCommand) commandName() string      { return "get_timeline" }
func (GetDetailsCommand) commandName() string       { return "get_screenshot_details" }
func (DeleteScreenshotCommand) commandName() string { return "delete_screenshot" }
func (DeleteRangeCommand) commandName() string      { return "delete_by_time_range" }
func (c UnknownCommand) commandName() string        { return c.Name }

// unixTime decodes an epoch value that may arrive as a number, a numeric
// string, an empty string, or null. Unparseable values decode as absent
// rather than failing the request.
type unixTime struct {
	value float64
	valid bool
}

func (t *unixTime) UnmarshalJSON(data []byte) error {
	*t = unixTime{}
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		*t = unixTime{value: value, valid: true}
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return nil
	}
	*t = unixTime{value: value, valid: true}
	return nil
}

func (t unixTime) ptr() *float64 {
	if !t.valid {
		return nil
	}
	value := t.value
	return &value
}

func (t unixTime) or(fallback float64) float64 {
	if !t.valid {
		return fallback
	}
	return t.value
}

// envelope holds the fields every request may carry before dispatch.
type envelope struct {
	Command   string `json:"command"`
	AuthToken string `json:"_auth_token"`
	SeqNo     *int64 `json:"_seq_no"`
}

const defaultSearchLimit = 10

func cleanProcessNames(names []string) []string {
	out := names[:0:0]
	for _, name := range names {
		if strings.TrimSpace(name) != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// decodeCommand maps a lower-cased command name plus the raw request body
// to its typed variant.
func decodeCommand(name string, data []byte) (Command, error) {
	switch name {
	case "pause":
		return PauseCommand{}, nil
	case "resume", "continue":
		return ResumeCommand{}, nil
	case "stop":
		return StopCommand{}, nil
	case "status":
		return StatusCommand{}, nil
	case "update_filters":
		var params struct {
			Filters struct {
				Processes       []string `json:"processes"`
				Titles          []string `json:"titles"`
				IgnoreProtected *bool    `json:"ignore_protected"`
			} `json:"filters"`
			Processes       []string `json:"processes"`
			Titles          []string `json:"titles"`
			IgnoreProtected *bool    `json:"ignore_protected"`
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		cmd := UpdateFiltersCommand{
			Processes:       params.Filters.Processes,
			Titles:          params.Filters.Titles,
			IgnoreProtected: params.Filters.IgnoreProtected,
		}
		if cmd.Processes == nil {
			cmd.Processes = params.Processes
		}
		if cmd.Titles == nil {
			cmd.Titles = params.Titles
		}
		if cmd.IgnoreProtected == nil {
			cmd.IgnoreProtected = params.IgnoreProtected
		}
		return cmd, nil
	case "search", "search_nl":
		var params struct {
			Query        string   `json:"query"`
			Limit        *int     `json:"limit"`
			Offset       int      `json:"offset"`
			Fuzzy        *bool    `json:"fuzzy"`
			ProcessNames []string `json:"process_names"`
			StartTime    unixTime `json:"start_time"`
			EndTime      unixTime `json:"end_time"`
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		limit := defaultSearchLimit
		if params.Limit != nil {
			limit = *params.Limit
		}
		if name == "search_nl" {
			return SemanticSearchCommand{
				Query:        params.Query,
				Limit:        limit,
				Offset:       params.Offset,
				ProcessNames: cleanProcessNames(params.ProcessNames),
				StartTime:    params.StartTime.ptr(),
				EndTime:      params.EndTime.ptr(),
			}, nil
		}
		fuzzy := true
		if params.Fuzzy != nil {
			fuzzy = *params.Fuzzy
		}
		return SearchCommand{
			Query:        params.Query,
			Limit:        limit,
			Offset:       params.Offset,
			Fuzzy:        fuzzy,
			ProcessNames: cleanProcessNames(params.ProcessNames),
			StartTime:    params.StartTime.ptr(),
			EndTime:      params.EndTime.ptr(),
		}, nil
	case "list_processes":
		var params struct {
			Limit int `json:"limit"`
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		return ListProcessesCommand{Limit: params.Limit}, nil
	case "get_image", "get_screenshot_details":
		var params struct {
			ID   *int64 `json:"id"`
			Path string `json:"path"`
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		if name == "get_image" {
			return GetImageCommand{ID: params.ID, Path: params.Path}, nil
		}
		return GetDetailsCommand{ID: params.ID, Path: params.Path}, nil
	case "get_timeline":
		var params struct {
			StartTime unixTime `json:"start_time"`
			EndTime   unixTime `json:"end_time"`
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		return GetTimelineCommand{
			StartTime: params.StartTime.or(0),
			EndTime:   params.EndTime.or(0),
		}, nil
	case "delete_screenshot":
		var params struct {
			ScreenshotID *int64 `json:"screenshot_id"`
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		return DeleteScreenshotCommand{ScreenshotID: params.ScreenshotID}, nil
	case "delete_by_time_range":
		var params struct {
			StartTime unixTime `json:"start_time"`
			EndTime   unixTime `json:"end_time"`
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		return DeleteRangeCommand{
			StartTime: params.StartTime.ptr(),
			EndTime:   params.EndTime.ptr(),
		}, nil
	default:
		return UnknownCommand{Name: name}, nil
	}
}
