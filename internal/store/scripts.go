package store

import "github.com/redis/go-redis/v9"

// stayQueryScript runs the exclusion and pricing phases of a dated search
// in one atomic server-side pass: range the global schedule index over the
// stay, decode each day document, and fold per-unit aggregates.
//
// KEYS[1]  global schedule day index (sorted set, member "unitID|yyyymmdd")
// ARGV[1]  stay start score (inclusive)
// ARGV[2]  stay end score (exclusive)
//
// Returns a flat array: unitID, blocked (0/1), pricedNights, priceSum
// (as a string to keep decimals), repeated per unit.
//
// The blocking predicate must stay in sync with DayScheduleDocument.Blocking.
var stayQueryScript = redis.NewScript(`
local members = redis.call("ZRANGEBYSCORE", KEYS[1], ARGV[1], "(" .. ARGV[2])
local acc = {}
for _, m in ipairs(members) do
  local sep = string.find(m, "|", 1, true)
  if sep then
    local unit = string.sub(m, 1, sep - 1)
    local day = string.sub(m, sep + 1)
    local raw = redis.call("GET", "schedule:" .. unit .. ":" .. day)
    if raw then
      local doc = cjson.decode(raw)
      local a = acc[unit]
      if not a then
        a = {blocked = 0, nights = 0, sum = 0}
        acc[unit] = a
      end
      local blocking = false
      if doc.status == "blocked" then
        blocking = true
      elseif doc.status == "booked" and doc.booking_id and doc.booking_id ~= "" then
        local st = doc.booking_state
        if st == "confirmed" or st == "checked_in" or st == "completed" then
          blocking = true
        end
      end
      if blocking then
        a.blocked = 1
      end
      a.nights = a.nights + 1
      a.sum = a.sum + (tonumber(doc.price) or 0)
    end
  end
end
local flat = {}
for unit, a in pairs(acc) do
  flat[#flat+1] = unit
  flat[#flat+1] = a.blocked
  flat[#flat+1] = a.nights
  flat[#flat+1] = tostring(a.sum)
end
return flat
`)
