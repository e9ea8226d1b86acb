package mysql

const upsertHotelSQL = `
INSERT INTO hotels
  (hotel_key, display_name, search_name)
VALUES
  (?, ?, ?)
ON DUPLICATE KEY UPDATE
  display_name = VALUES(display_name),
  search_name  = VALUES(search_name)
`

const insertObservationSQL = `
INSERT INTO observations
  (hotel_key, name, price, currency, check_in, check_out, recorded_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const getHotelSQL = `
SELECT hotel_key, display_name, search_name, created_at
FROM hotels
WHERE hotel_key = ?
`

const listHotelsSQL = `
SELECT hotel_key, display_name, search_name, created_at
FROM hotels
ORDER BY hotel_key
`

// History is most-recent-first; id breaks ties when two observations land
// in the same second.
const historySQL = `
SELECT id, hotel_key, name, price, currency, check_in, check_out, recorded_at
FROM observations
WHERE hotel_key = ?
ORDER BY recorded_at DESC, id DESC
LIMIT ?
`

const latestObservationSQL = `
SELECT id, hotel_key, name, price, currency, check_in, check_out, recorded_at
FROM observations
WHERE hotel_key = ?
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`

const latestObservationInRangeSQL = `
SELECT id, hotel_key, name, price, currency, check_in, check_out, recorded_at
FROM observations
WHERE hotel_key = ? AND check_in = ? AND check_out = ?
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`
