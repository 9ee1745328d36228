package outbox

const workoutEventSchema = `{
  "type": "object",
  "title": "WorkoutEvent",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "duration_minutes": {"type": "integer", "minimum": 1},
    "created_at": {"type": "string", "format": "date-time"},
    "updated_at": {"type": "string", "format": "date-time"},
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "group_id": {"type": "string"},
          "week_key": {"type": "string", "pattern": "^[0-9]{4}-W[0-9]{2}$"},
          "is_qualified": {"type": "boolean"}
        },
        "required": ["group_id", "week_key", "is_qualified"],
        "additionalProperties": false
      }
    }
  },
  "required": ["workout_id", "user_id", "duration_minutes", "created_at", "updated_at", "groups"],
  "additionalProperties": false
}`
