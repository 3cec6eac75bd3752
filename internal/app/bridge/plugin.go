// Package bridge implements the CapAndroidSteps plugin methods and the HTTP
// call envelope a hybrid-app shell uses to invoke them.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/yelzgniq/cap-android-steps/internal/aggregator"
	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/permission"
)

// Window answers aggregate step queries.
type Window interface {
	QueryDelta(period domain.Period) (domain.StepCount, error)
	QueryTotalSinceInit() (domain.StepCount, error)
}

// Readings exposes the most recent raw reading.
type Readings interface {
	Latest() (domain.StepSample, bool)
}

// Sensors reports the active step sensor, if any.
type Sensors interface {
	Sensor() (domain.SensorInfo, bool)
}

// Permissions gates step data behind the activity recognition permission.
type Permissions interface {
	Granted(permission string) bool
	Request(ctx context.Context, permission string) (domain.PermissionResult, error)
}

type StepPeriodOptions struct {
	Period string `json:"period"`
}

type StepCountResult struct {
	Count     int64         `json:"count"`
	Period    domain.Period `json:"period"`
	StartTime *int64        `json:"startTime"`
	EndTime   int64         `json:"endTime"`
}

type SensorValuesResult struct {
	Values        *orderedmap.OrderedMap[string, float64] `json:"values"`
	StepCount     float64                                 `json:"stepCount"`
	SensorName    string                                  `json:"sensorName"`
	SensorVendor  string                                  `json:"sensorVendor"`
	SensorVersion int                                     `json:"sensorVersion"`
}

type InvertStringOptions struct {
	Value *string `json:"value"`
}

type InvertStringResult struct {
	Value string `json:"value"`
}

type Plugin struct {
	window   Window
	readings Readings
	sensors  Sensors
	perms    Permissions

	requestTimeout time.Duration
}

func NewPlugin(window Window, readings Readings, sensors Sensors, perms Permissions, requestTimeout time.Duration) (*Plugin, error) {
	if window == nil || readings == nil || sensors == nil || perms == nil {
		return nil, fmt.Errorf("bridge plugin requires window, readings, sensors and permissions")
	}
	if requestTimeout <= 0 {
		requestTimeout = 2 * time.Minute
	}
	return &Plugin{
		window:         window,
		readings:       readings,
		sensors:        sensors,
		perms:          perms,
		requestTimeout: requestTimeout,
	}, nil
}

// GetStepsForPeriod returns the steps of the trailing hour or day, or the
// raw counter since the device reset for "all". Any other period, or none,
// counts the trailing day; the result echoes the name the caller sent.
func (p *Plugin) GetStepsForPeriod(opts StepPeriodOptions) (StepCountResult, error) {
	if !p.perms.Granted(domain.ActivityRecognition) {
		return StepCountResult{}, reject(CodePermissionDenied, MsgPermissionNotGranted, nil)
	}

	period := domain.ParsePeriod(opts.Period)

	var (
		res domain.StepCount
		err error
	)
	if period == domain.PeriodAll {
		if _, ok := p.sensors.Sensor(); !ok {
			return StepCountResult{}, reject(CodeSensorUnavailable, MsgSensorUnavailable, nil)
		}
		res, err = p.window.QueryTotalSinceInit()
		if errors.Is(err, aggregator.ErrNoData) {
			return StepCountResult{}, reject(CodeNoData, MsgNoDataYet, err)
		}
	} else {
		res, err = p.window.QueryDelta(period)
		if errors.Is(err, aggregator.ErrNoData) {
			return StepCountResult{}, reject(CodeNoData, MsgNoWindowData, err)
		}
	}
	if err != nil {
		return StepCountResult{}, err
	}

	out := StepCountResult{
		Count:   res.Count,
		Period:  res.Period,
		EndTime: res.End.UnixMilli(),
	}
	if opts.Period != "" {
		out.Period = domain.Period(opts.Period)
	}
	if res.Start != nil {
		ms := res.Start.UnixMilli()
		out.StartTime = &ms
	}
	return out, nil
}

// RequestActivityRecognitionPermission resolves once the host answered the
// prompt, or immediately when no prompt is needed.
func (p *Plugin) RequestActivityRecognitionPermission(ctx context.Context) (domain.PermissionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	res, err := p.perms.Request(ctx, domain.ActivityRecognition)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, permission.ErrSensorUnavailable):
		return domain.PermissionResult{}, reject(CodeSensorUnavailable, MsgSensorUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.PermissionResult{}, reject(CodeUnavailable, "Permission request was not answered", err)
	default:
		return domain.PermissionResult{}, err
	}
}

// GetRawSensorValues returns every value of the latest reading keyed by its
// index, plus the sensor description.
func (p *Plugin) GetRawSensorValues() (SensorValuesResult, error) {
	if !p.perms.Granted(domain.ActivityRecognition) {
		return SensorValuesResult{}, reject(CodePermissionDenied, MsgPermissionNotGranted, nil)
	}
	info, ok := p.sensors.Sensor()
	if !ok {
		return SensorValuesResult{}, reject(CodeSensorUnavailable, MsgSensorUnavailable, nil)
	}
	latest, ok := p.readings.Latest()
	if !ok {
		return SensorValuesResult{}, reject(CodeNoData, MsgNoSensorData, nil)
	}

	raw := latest.RawValues()
	values := orderedmap.New[string, float64]()
	for i, v := range raw {
		values.Set(strconv.Itoa(i), v)
	}

	return SensorValuesResult{
		Values:        values,
		StepCount:     raw[0],
		SensorName:    info.Name,
		SensorVendor:  info.Vendor,
		SensorVersion: info.Version,
	}, nil
}

// InvertString reverses value. It only exists so shells can check the
// bridge is wired end to end.
func (p *Plugin) InvertString(opts InvertStringOptions) (InvertStringResult, error) {
	if opts.Value == nil {
		return InvertStringResult{}, reject(CodeInvalidArgument, MsgMissingValue, nil)
	}
	r := []rune(*opts.Value)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return InvertStringResult{Value: string(r)}, nil
}
