package handler

import (
	"net/http"
	"strconv"
	"time"

	"retailsense/internal/analytics"
	"retailsense/internal/apperror"
	"retailsense/internal/logger"
	"retailsense/internal/model"
	"retailsense/pkg/response"

	"github.com/gin-gonic/gin"
)

// StatusClientClosedRequest is the nginx convention for a request the client abandoned.
const StatusClientClosedRequest = 499

const dateLayout = "2006-01-02"

// parseDay accepts YYYY-MM-DD or RFC3339 and returns midnight of that calendar day in loc.
func parseDay(s string, loc *time.Location) (time.Time, bool) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return analytics.StartOfDay(t, loc), true
	}
	return time.Time{}, false
}

// requiredRange reads start_date and end_date. Both must be present and well formed.
func requiredRange(c *gin.Context, loc *time.Location) (model.DateRange, error) {
	r, present, err := readRange(c, loc)
	if err != nil {
		return r, err
	}
	if !present {
		return r, apperror.New(apperror.KindInvalidRange, "parse range", "start_date and end_date are required",
			queryDetails(c, "start_date", "end_date"))
	}
	return r, nil
}

// optionalRange returns nil when neither bound is given.
func optionalRange(c *gin.Context, loc *time.Location) (*model.DateRange, error) {
	r, present, err := readRange(c, loc)
	if err != nil || !present {
		return nil, err
	}
	return &r, nil
}

func readRange(c *gin.Context, loc *time.Location) (model.DateRange, bool, error) {
	startStr, endStr := c.Query("start_date"), c.Query("end_date")
	if startStr == "" && endStr == "" {
		return model.DateRange{}, false, nil
	}
	details := queryDetails(c, "start_date", "end_date")
	if startStr == "" || endStr == "" {
		return model.DateRange{}, false, apperror.New(apperror.KindInvalidRange, "parse range", "start_date and end_date must be given together", details)
	}

	start, ok := parseDay(startStr, loc)
	if !ok {
		return model.DateRange{}, false, apperror.New(apperror.KindInvalidRange, "parse range", "invalid start_date format, expected YYYY-MM-DD", details)
	}
	end, ok := parseDay(endStr, loc)
	if !ok {
		return model.DateRange{}, false, apperror.New(apperror.KindInvalidRange, "parse range", "invalid end_date format, expected YYYY-MM-DD", details)
	}
	return model.DateRange{Start: start, End: end}, true, nil
}

// intQuery parses an optional integer parameter; ok is false when it is absent.
func intQuery(c *gin.Context, name string) (n int, ok bool, err error) {
	v := c.Query(name)
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, apperror.New(apperror.KindInvalidInput, "parse "+name, name+" must be an integer", queryDetails(c, name))
	}
	return n, true, nil
}

func boolQuery(c *gin.Context, name string) (bool, error) {
	v := c.Query(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperror.New(apperror.KindInvalidInput, "parse "+name, name+" must be true or false", queryDetails(c, name))
	}
	return b, nil
}

func queryDetails(c *gin.Context, names ...string) map[string]any {
	details := make(map[string]any, len(names))
	for _, n := range names {
		if v := c.Query(n); v != "" {
			details[n] = v
		}
	}
	return details
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInvalidRange, apperror.KindInvalidInput:
		return http.StatusBadRequest
	case apperror.KindNoData:
		return http.StatusNotFound
	case apperror.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperror.KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the response envelope. Causes are logged, never sent.
func writeError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := statusFor(kind)

	log := logger.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("kind", string(kind)).Msg("request rejected")
	}

	if apperror.Retryable(err) {
		c.Header("Retry-After", "5")
	}
	c.JSON(status, response.Fail(status, string(kind), apperror.MessageOf(err), apperror.DetailsOf(err)))
}
