package models

// RefPolicy определяет, что происходит с зависимой записью при удалении родителя
type RefPolicy int

const (
	// Cascade удаляет зависимую запись (ссылки владения)
	Cascade RefPolicy = iota
	// SetNull обнуляет ссылку (ссылки на автора)
	SetNull
)

func (p RefPolicy) String() string {
	if p == SetNull {
		return "set-null"
	}
	return "cascade"
}

// Relation describes one foreign reference from Child.Field to a parent record.
// Field is the JSON name of the referencing field.
type Relation struct {
	Child  EntityType
	Field  string
	Policy RefPolicy
}

var relations = map[EntityType][]Relation{
	EntityHomeless: {
		{Child: EntityRequest, Field: "homeless_id", Policy: Cascade},
		{Child: EntityUpdate, Field: "homeless_id", Policy: Cascade},
		{Child: EntityPreference, Field: "homeless_id", Policy: Cascade},
	},
	EntityVolunteer: {
		{Child: EntityHomeless, Field: "creator_id", Policy: SetNull},
		{Child: EntityRequest, Field: "creator_id", Policy: SetNull},
		{Child: EntityUpdate, Field: "creator_id", Policy: SetNull},
		{Child: EntityPreference, Field: "volunteer_id", Policy: Cascade},
	},
}

// Dependents returns the relations whose parent is t.
func Dependents(t EntityType) []Relation {
	return relations[t]
}
