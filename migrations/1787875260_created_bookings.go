package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_bookings0001",
			"name": "bookings",
			"type": "base",
			"system": false,
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"id": "text3208210257",
					"max": 15,
					"min": 15,
					"name": "id",
					"pattern": "^[a-z0-9]+$",
					"presentable": false,
					"primaryKey": true,
					"required": true,
					"system": true,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text2542078991",
					"max": 0,
					"min": 0,
					"name": "reference",
					"pattern": "",
					"presentable": true,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "select1204587666",
					"maxSelect": 1,
					"name": "target_kind",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": [
						"package",
						"villa",
						"other"
					]
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text3847298417",
					"max": 0,
					"min": 0,
					"name": "target_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text1689669068",
					"max": 0,
					"min": 0,
					"name": "user_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "number2243503886",
					"max": null,
					"min": 1,
					"name": "traveler_count",
					"onlyInt": true,
					"presentable": false,
					"required": true,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "json3174659611",
					"maxSize": 0,
					"name": "traveler_details",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "json"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text1246835079",
					"max": 0,
					"min": 0,
					"name": "special_requests",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text2502384312",
					"max": 10,
					"min": 10,
					"name": "departure_date",
					"pattern": "^\\d{4}-\\d{2}-\\d{2}$",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "select2063623453",
					"maxSelect": 1,
					"name": "status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": [
						"pending",
						"confirmed",
						"completed",
						"cancelled"
					]
				},
				{
					"hidden": false,
					"id": "select3919837291",
					"maxSelect": 1,
					"name": "payment_status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": [
						"unpaid",
						"paid",
						"refunded",
						"failed"
					]
				},
				{
					"hidden": false,
					"id": "number1843164999",
					"max": null,
					"min": 0,
					"name": "total_price",
					"onlyInt": false,
					"presentable": false,
					"required": true,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "autodate2990389177",
					"name": "created",
					"onCreate": true,
					"onUpdate": false,
					"presentable": false,
					"system": false,
					"type": "autodate"
				},
				{
					"hidden": false,
					"id": "autodate3332085496",
					"name": "updated",
					"onCreate": true,
					"onUpdate": true,
					"presentable": false,
					"system": false,
					"type": "autodate"
				}
			],
			"indexes": [
				"CREATE INDEX idx_bookings_user ON bookings (user_id)",
				"CREATE INDEX idx_bookings_target ON bookings (target_kind, target_id)",
				"CREATE INDEX idx_bookings_status ON bookings (status)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("pbc_bookings0001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
