// Package domain models the Iran statistics tables and the per-topic records
// merged into the website's statistics document.
//
// # Data Source
//
// The source tables are hand-curated CSV files kept next to the analysis
// datasets. Every table is keyed by a "Topic" column whose labels are fixed:
//
//	Car Accidents | Air Pollution | Education Dropout | Workers Died | Death Penalty
//
// Tables:
//
//	data.csv               Topic, Daily_Average, Monthly_Average, Forecast_Number
//	details.csv            Topic, Title, Description, Sources, Sources_Link
//	time_series_Iran.csv   Topic, <year>, <year>, ...
//	time_series_World.csv  Topic, Country, <year>, <year>, ...
//	world_sources.csv      Topic, Country, <year>, <year>, ...
//
// # Calendar Conventions
//
// Analysis datasets label observations with Solar Hijri (Persian) years. A
// Persian year is mapped to January 1 of the Gregorian year local+621, e.g.
// 1395 becomes 2016-01-01. The mapping is approximate by design of the source
// data (the Persian year begins in March) and is applied without range checks.
// See [NormalizeYear].
//
// # Value Conventions
//
// Counts are published with thousands separators ("1,234"). Blank cells and
// the usual spreadsheet missing markers ("NaN", "N/A", "#N/A", ...) are
// missing values and surface as JSON null. Cells that are present but not
// integers also become null, and are reported so the caller can log them.
// See [CleanSeries].
//
// Multi-valued detail cells (Sources, Sources_Link) are separated by ";".
//
// Summary averages are rounded half to even; the forecast figure is truncated
// toward zero and published as the yearly average.
//
// # World Citations
//
// world_sources.csv rows are matched to time_series_World.csv rows by position
// within a topic, not by country name. A country without a citation row gets
// an empty citation list.
package domain
