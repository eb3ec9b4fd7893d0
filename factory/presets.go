package factory

// =============================================================================
// PRESET KITCHENS
// =============================================================================
//
// Demo catalogs for the scenario loader. IDs are prefixed per scenario so
// several can be loaded into one kitchen side by side.

// Preset is a named demo catalog.
type Preset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	JSON        string `json:"-"`
}

// Presets lists every demo catalog in display order.
func Presets() []Preset {
	return []Preset{
		{
			ID:          "pizzeria",
			Name:        "Pizzeria",
			Description: "Dough and tomato sauce made in batches, pizzas consume both",
			JSON:        PizzeriaJSON(),
		},
		{
			ID:          "bakery",
			Name:        "Bakery",
			Description: "Raw-only recipes; butter starts below its threshold",
			JSON:        BakeryJSON(),
		},
		{
			ID:          "cafe",
			Name:        "Cafe",
			Description: "Cold brew concentrate batch; oat milk is out of stock",
			JSON:        CafeJSON(),
		},
	}
}

// PresetByID looks up a demo catalog by ID.
func PresetByID(id string) (Preset, bool) {
	for _, p := range Presets() {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// PizzeriaJSON exercises the two-level bill of materials.
func PizzeriaJSON() string {
	return `{
  "ingredients": [
    {"id": "pz-flour",    "name": "Flour",         "category": "dry",    "unit": "g",  "quantity": "10000", "min_threshold": "2000"},
    {"id": "pz-water",    "name": "Water",         "category": "liquid", "unit": "ml", "quantity": "20000", "min_threshold": "1000"},
    {"id": "pz-yeast",    "name": "Yeast",         "category": "dry",    "unit": "g",  "quantity": "500",   "min_threshold": "50"},
    {"id": "pz-tomato",   "name": "Tomatoes",      "category": "fresh",  "unit": "g",  "quantity": "8000",  "min_threshold": "1500"},
    {"id": "pz-mozz",     "name": "Mozzarella",    "category": "dairy",  "unit": "g",  "quantity": "3000",  "min_threshold": "800"},
    {"id": "pz-basil",    "name": "Basil",         "category": "fresh",  "unit": "g",  "quantity": "120",   "min_threshold": "40"},
    {"id": "pz-dough",    "name": "Pizza dough",   "category": "prep",   "unit": "g",  "quantity": "0",     "min_threshold": "1000"},
    {"id": "pz-sauce",    "name": "Tomato sauce",  "category": "prep",   "unit": "ml", "quantity": "500",   "min_threshold": "400"}
  ],
  "batches": [
    {"id": "pz-dough-batch", "name": "Dough (1 kg)", "target_id": "pz-dough", "yield": "1000",
     "recipe": [
       {"ingredient_id": "pz-flour", "amount": "600"},
       {"ingredient_id": "pz-water", "amount": "380"},
       {"ingredient_id": "pz-yeast", "amount": "20"}
     ]},
    {"id": "pz-sauce-batch", "name": "Sauce (1 l)", "target_id": "pz-sauce", "yield": "1000",
     "recipe": [
       {"ingredient_id": "pz-tomato", "amount": "1200"},
       {"ingredient_id": "pz-basil",  "amount": "10"}
     ]}
  ],
  "menus": [
    {"id": "pz-margherita", "name": "Margherita", "price": "9.50",
     "recipe": [
       {"ingredient_id": "pz-dough", "amount": "250"},
       {"ingredient_id": "pz-sauce", "amount": "80"},
       {"ingredient_id": "pz-mozz",  "amount": "120"},
       {"ingredient_id": "pz-basil", "amount": "3"}
     ]},
    {"id": "pz-marinara", "name": "Marinara", "price": "7.00",
     "recipe": [
       {"ingredient_id": "pz-dough", "amount": "250"},
       {"ingredient_id": "pz-sauce", "amount": "120"}
     ]}
  ]
}`
}

// BakeryJSON sells straight from raw ingredients.
func BakeryJSON() string {
	return `{
  "ingredients": [
    {"id": "bk-flour",  "name": "Bread flour", "category": "dry",   "unit": "kg",  "quantity": "25",  "min_threshold": "5"},
    {"id": "bk-butter", "name": "Butter",      "category": "dairy", "unit": "kg",  "quantity": "1.5", "min_threshold": "2"},
    {"id": "bk-sugar",  "name": "Sugar",       "category": "dry",   "unit": "kg",  "quantity": "10",  "min_threshold": "2"},
    {"id": "bk-eggs",   "name": "Eggs",        "category": "fresh", "unit": "pcs", "quantity": "60",  "min_threshold": "24"}
  ],
  "menus": [
    {"id": "bk-croissant", "name": "Croissant", "price": "2.40",
     "recipe": [
       {"ingredient_id": "bk-flour",  "amount": "0.06"},
       {"ingredient_id": "bk-butter", "amount": "0.03"}
     ]},
    {"id": "bk-brioche", "name": "Brioche", "price": "3.10",
     "recipe": [
       {"ingredient_id": "bk-flour",  "amount": "0.08"},
       {"ingredient_id": "bk-butter", "amount": "0.02"},
       {"ingredient_id": "bk-sugar",  "amount": "0.01"},
       {"ingredient_id": "bk-eggs",   "amount": "1"}
     ]}
  ]
}`
}

// CafeJSON has one batch and an ingredient already at zero.
func CafeJSON() string {
	return `{
  "ingredients": [
    {"id": "cf-beans",    "name": "Coffee beans",         "category": "dry",    "unit": "g",  "quantity": "3000",  "min_threshold": "1000"},
    {"id": "cf-water",    "name": "Filtered water",       "category": "liquid", "unit": "ml", "quantity": "50000", "min_threshold": "5000"},
    {"id": "cf-milk",     "name": "Whole milk",           "category": "dairy",  "unit": "ml", "quantity": "6000",  "min_threshold": "2000"},
    {"id": "cf-oat",      "name": "Oat milk",             "category": "dairy",  "unit": "ml", "quantity": "0",     "min_threshold": "1000"},
    {"id": "cf-coldbrew", "name": "Cold brew concentrate", "category": "prep",  "unit": "ml", "quantity": "0",     "min_threshold": "500"}
  ],
  "batches": [
    {"id": "cf-coldbrew-batch", "name": "Cold brew (2 l)", "target_id": "cf-coldbrew", "yield": "2000",
     "recipe": [
       {"ingredient_id": "cf-beans", "amount": "250"},
       {"ingredient_id": "cf-water", "amount": "2200"}
     ]}
  ],
  "menus": [
    {"id": "cf-latte", "name": "Latte", "price": "4.20",
     "recipe": [
       {"ingredient_id": "cf-beans", "amount": "18"},
       {"ingredient_id": "cf-milk",  "amount": "200"}
     ]},
    {"id": "cf-oat-latte", "name": "Oat latte", "price": "4.60",
     "recipe": [
       {"ingredient_id": "cf-beans", "amount": "18"},
       {"ingredient_id": "cf-oat",   "amount": "200"}
     ]},
    {"id": "cf-iced-coldbrew", "name": "Iced cold brew", "price": "4.00",
     "recipe": [
       {"ingredient_id": "cf-coldbrew", "amount": "150"},
       {"ingredient_id": "cf-water",    "amount": "100"}
     ]}
  ]
}`
}
