package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hkagei/jetblue-route-planning/src/config"
	"github.com/hkagei/jetblue-route-planning/src/utils"
)

// RouteSeparator origin与destination之间的分隔符
const RouteSeparator = "-"

// DeriveRoute JFK + LAX -> JFK-LAX
func DeriveRoute(origin, destination string) string {
	return origin + RouteSeparator + destination
}

// RouteEnricher 排序并补充航线、机型、座位配置
type RouteEnricher struct {
	dcfg *config.DataConfig
}

func NewRouteEnricher(dcfg *config.DataConfig) *RouteEnricher {
	return &RouteEnricher{dcfg: dcfg}
}

func (e *RouteEnricher) Name() string { return "enrich" }

// AssignAircraftType 未配置的航线返回 ok=false, 不做默认填充
func (e *RouteEnricher) AssignAircraftType(route string) (string, bool) {
	return e.dcfg.AircraftFor(route)
}

// AssignSeatsConfigured 机型 -> 座位数
func (e *RouteEnricher) AssignSeatsConfigured(aircraft string) (int, bool) {
	return e.dcfg.SeatsFor(aircraft)
}

func (e *RouteEnricher) Process(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if missing := utils.MissingColumns(df, ColOrigin, ColDestination, ColMonth); len(missing) > 0 {
		return df, fmt.Errorf("enrich: %w: %v", ErrMissingColumn, missing)
	}

	// month已规范为YYYY-MM-DD, 字符串序即时间序
	df = utils.ArrangeBy(df, ColOrigin, ColDestination, ColMonth)
	if df.Err != nil {
		return df, fmt.Errorf("enrich: sort: %w", df.Err)
	}

	origins := df.Col(ColOrigin).Records()
	destinations := df.Col(ColDestination).Records()

	n := df.Nrow()
	routes := make([]string, n)
	aircraft := make([]string, n)
	hasAircraft := make([]bool, n)
	seats := make([]int, n)
	hasSeats := make([]bool, n)

	for i := 0; i < n; i++ {
		routes[i] = DeriveRoute(origins[i], destinations[i])
		if a, ok := e.AssignAircraftType(routes[i]); ok {
			aircraft[i], hasAircraft[i] = a, true
			seats[i], hasSeats[i] = e.AssignSeatsConfigured(a)
		}
	}

	df = df.Mutate(series.New(routes, series.String, ColRoute)).
		Mutate(utils.NullableStringSeries(ColAircraftType, aircraft, hasAircraft)).
		Mutate(utils.NullableIntSeries(ColSeatsConfigured, seats, hasSeats))
	if df.Err != nil {
		return df, fmt.Errorf("enrich: %w", df.Err)
	}

	if err := CheckRouteAssignments(df); err != nil {
		return df, err
	}
	return df, nil
}

// CheckRouteAssignments 同一航线的机型与座位数必须一致
func CheckRouteAssignments(df dataframe.DataFrame) error {
	routes := df.Col(ColRoute).Records()
	aircraft := df.Col(ColAircraftType).Records()
	seats := df.Col(ColSeatsConfigured).Records()

	order, groups := utils.GroupIndex(routes)
	for _, route := range order {
		idx := groups[route]
		first := idx[0]
		for _, i := range idx[1:] {
			if aircraft[i] != aircraft[first] {
				return fmt.Errorf("%w: %s has %q and %q", ErrInconsistentAircraft, route, aircraft[first], aircraft[i])
			}
			if seats[i] != seats[first] {
				return fmt.Errorf("%w: route %s has %s and %s seats", ErrInconsistentSeats, route, seats[first], seats[i])
			}
		}
	}
	return nil
}
