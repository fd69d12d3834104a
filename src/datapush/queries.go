package datapush

// NamedQueries 常用分析查询, 均基于route_performance
var NamedQueries = map[string]string{
	// 各航线总利润
	"profit_by_route": `
SELECT route, SUM(profit) AS total_profit
FROM route_performance
GROUP BY route
ORDER BY total_profit DESC`,

	// 各航线月度利润与乘客走势
	"route_trend": `
SELECT route, month, passengers, profit
FROM route_performance
ORDER BY route, month`,

	"revenue_lag": `
SELECT route, month, revenue,
       LAG(revenue) OVER (PARTITION BY route ORDER BY month) AS prev_revenue
FROM route_performance
ORDER BY route, month`,

	"revenue_growth": `
SELECT route, month, revenue,
       (revenue - LAG(revenue) OVER (PARTITION BY route ORDER BY month))
         / LAG(revenue) OVER (PARTITION BY route ORDER BY month) AS revenue_growth
FROM route_performance
ORDER BY route, month`,

	// 利润最高的10个航线月份
	"top_route_months": `
SELECT route, month, profit
FROM route_performance
ORDER BY profit DESC
LIMIT 10`,

	"profit_by_aircraft": `
SELECT aircraft_type, SUM(profit) AS total_profit, AVG(profit_margin) AS avg_margin
FROM route_performance
WHERE aircraft_type IS NOT NULL
GROUP BY aircraft_type
ORDER BY total_profit DESC`,

	"load_proxy_by_aircraft": `
SELECT aircraft_type,
       AVG(passengers) AS avg_passengers,
       MAX(seats_configured) AS seats_configured,
       AVG(passengers) * 1.0 / MAX(seats_configured) AS load_factor_proxy
FROM route_performance
WHERE aircraft_type IS NOT NULL
GROUP BY aircraft_type
ORDER BY load_factor_proxy DESC`,

	"profit_per_seat": `
SELECT aircraft_type,
       SUM(profit) / (MAX(seats_configured) * COUNT(*)) AS profit_per_seat
FROM route_performance
WHERE aircraft_type IS NOT NULL
GROUP BY aircraft_type
ORDER BY profit_per_seat DESC`,

	"monthly_profit_by_aircraft": `
SELECT month, aircraft_type, SUM(profit) AS total_profit
FROM route_performance
WHERE aircraft_type IS NOT NULL
GROUP BY month, aircraft_type
ORDER BY month, aircraft_type`,

	// 各机型执飞的航线数与月份数
	"aircraft_mix": `
SELECT aircraft_type, COUNT(DISTINCT route) AS routes, COUNT(*) AS route_months
FROM route_performance
WHERE aircraft_type IS NOT NULL
GROUP BY aircraft_type
ORDER BY routes DESC, aircraft_type`,
}
