package validation

var RoutineInput = MustCompile("routine", `{
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 200},
    "description": {"type": "string", "maxLength": 2000},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["productId", "frequency"],
        "properties": {
          "productId": {"type": "string", "minLength": 1},
          "order": {"type": "integer"},
          "frequency": {"enum": ["daily", "every_wash", "weekly", "biweekly", "monthly", "as_needed"]},
          "notes": {"type": "string", "maxLength": 1000}
        }
      }
    }
  }
}`)

var HairProfileInput = MustCompile("hair-profile", `{
  "type": "object",
  "required": ["hairType", "porosity", "density", "thickness", "damage"],
  "properties": {
    "hairType": {"enum": ["1", "2A", "2B", "2C", "3A", "3B", "3C", "4A", "4B", "4C"]},
    "porosity": {"enum": ["low", "normal", "high"]},
    "density": {"enum": ["low", "medium", "high"]},
    "thickness": {"enum": ["fine", "medium", "coarse"]},
    "damage": {"enum": ["none", "mild", "moderate", "severe"]}
  }
}`)
