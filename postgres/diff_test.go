// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"testing"

	"github.com/veiloq/modeldiff/model"

	"github.com/stretchr/testify/require"
)

func TestDiff_ModelDiff(t *testing.T) {
	type testcase struct {
		name     string
		from, to *model.Model
		wantOps  []model.Operation
		wantErr  bool
	}
	tests := []testcase{
		{
			name: "no changes",
			from: sequenceModel(true),
			to:   sequenceModel(true),
		},
		func() testcase {
			from, to := sequenceModel(false), sequenceModel(true)
			return testcase{
				name: "add default sequence",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.AlterColumn{
						Schema: "public",
						Table:  "orders",
						From:   from.Entities[0].Properties[0],
						To:     to.Entities[0].Properties[0],
					},
					&model.AddSequence{S: DefaultSequence()},
				},
			}
		}(),
		func() testcase {
			from, to := sequenceModel(true), sequenceModel(false)
			return testcase{
				name: "drop default sequence",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.AlterColumn{
						Schema: "public",
						Table:  "orders",
						From:   from.Entities[0].Properties[0],
						To:     to.Entities[0].Properties[0],
					},
					&model.DropSequence{S: DefaultSequence()},
				},
			}
		}(),
		func() testcase {
			from, to := sequenceModel(false), sequenceModel(true)
			to.Entities[0].Properties[0].AddAttrs(&SequenceName{N: "order_seq"})
			return testcase{
				name: "explicit sequence name",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.AlterColumn{
						Schema: "public",
						Table:  "orders",
						From:   from.Entities[0].Properties[0],
						To:     to.Entities[0].Properties[0],
					},
				},
			}
		}(),
		func() testcase {
			// An explicit strategy on the property pins its resolution,
			// leaving the model-wide change with no column effect.
			from, to := identityModel(), identityModel()
			to.AddAttrs(&ValueGeneration{Strategy: GenerationSequence})
			return testcase{
				name: "model-wide sequence strategy",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.AddSequence{S: DefaultSequence()},
				},
			}
		}(),
		func() testcase {
			from, to := identityModel(), identityModel()
			from.AddAttrs(&ValueGeneration{Strategy: GenerationSequence})
			to.AddAttrs(&ValueGeneration{Strategy: GenerationSequence}, &SequenceName{N: "custom_seq"})
			return testcase{
				name: "named model sequence",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropSequence{S: DefaultSequence()},
				},
			}
		}(),
		func() testcase {
			from, to := keyModel(), keyModel()
			to.Entities[0].Keys[0].AddAttrs(&Clustered{V: true})
			add := &model.AddUniqueConstraint{Schema: "public", Table: "orders", K: to.Entities[0].Keys[0]}
			add.Annotate(AnnotationClustered, "true")
			return testcase{
				name: "key clustering change",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropUniqueConstraint{Schema: "public", Table: "orders", Name: "uq_orders_code"},
					add,
				},
			}
		}(),
		func() testcase {
			from, to := computedModel("[price] * [qty]"), computedModel("[price] * [qty] + [tax]")
			from.AddAttrs(&ValueGeneration{Strategy: GenerationSequence})
			alter := &model.AlterColumn{
				Schema: "public",
				Table:  "orders",
				From:   from.Entities[0].Properties[1],
				To:     to.Entities[0].Properties[1],
			}
			alter.Annotate(AnnotationComputed, "[price] * [qty] + [tax]")
			return testcase{
				name: "computed expression and sequence removal",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					alter,
					&model.DropSequence{S: DefaultSequence()},
				},
			}
		}(),
		func() testcase {
			to := keyModel()
			to.Entities[0].Keys[0].AddAttrs(&Clustered{V: false})
			add := &model.AddUniqueConstraint{Schema: "public", Table: "orders", K: to.Entities[0].Keys[0]}
			add.Annotate(AnnotationClustered, "false")
			return testcase{
				name: "create from empty",
				from: nil,
				to:   to,
				wantOps: []model.Operation{
					&model.CreateTable{E: to.Entities[0]},
					add,
				},
			}
		}(),
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := DefaultDiff.ModelDiff(tt.from, tt.to)
			require.Equalf(t, tt.wantErr, err != nil, "got: %v", err)
			require.EqualValues(t, tt.wantOps, ops)
		})
	}
}

func TestDiff_PropertyDiff(t *testing.T) {
	type testcase struct {
		name     string
		from, to *model.Property
		wantOps  []model.Operation
		wantErr  bool
	}
	tests := []testcase{
		{
			name: "no changes",
			from: nameProperty(""),
			to:   nameProperty(""),
		},
		func() testcase {
			from, to := nameProperty("[first] || [last]"), nameProperty("[first] || ' ' || [last]")
			alter := &model.AlterColumn{Schema: "public", Table: "users", From: from, To: to}
			alter.Annotate(AnnotationComputed, "[first] || ' ' || [last]")
			return testcase{
				name:    "computed expression changed",
				from:    from,
				to:      to,
				wantOps: []model.Operation{alter},
			}
		}(),
		func() testcase {
			from, to := nameProperty(""), nameProperty("")
			to.AddAttrs(&ValueGeneration{Strategy: GenerationIdentity})
			alter := &model.AlterColumn{Schema: "public", Table: "users", From: from, To: to}
			alter.Annotate(AnnotationValueGeneration, GenerationIdentity)
			return testcase{
				name:    "strategy changed",
				from:    from,
				to:      to,
				wantOps: []model.Operation{alter},
			}
		}(),
		func() testcase {
			// A planned alter is reused and annotated, not duplicated.
			from, to := nameProperty(""), nameProperty("[first] || [last]")
			to.Null = true
			alter := &model.AlterColumn{Schema: "public", Table: "users", From: from, To: to}
			alter.Annotate(AnnotationComputed, "[first] || [last]")
			return testcase{
				name:    "nullability and computed expression changed",
				from:    from,
				to:      to,
				wantOps: []model.Operation{alter},
			}
		}(),
		func() testcase {
			to := identityModel().Entities[0].Properties[0]
			add := &model.AddColumn{Schema: "public", Table: "orders", P: to}
			add.Annotate(AnnotationValueGeneration, GenerationIdentity)
			return testcase{
				name:    "add with explicit strategy",
				from:    nil,
				to:      to,
				wantOps: []model.Operation{add},
			}
		}(),
		func() testcase {
			e := model.NewEntityType("User").SetSchema("public")
			id := model.NewIntProperty("Id", TypeBigInt).SetValueGenerated(true)
			e.AddProperties(id)
			e.SetPrimaryKey(model.NewPrimaryKey(id))
			add := &model.AddColumn{Schema: "public", Table: "users", P: id}
			add.Annotate(AnnotationValueGeneration, GenerationIdentity)
			return testcase{
				name:    "add integer primary key infers identity",
				from:    nil,
				to:      id,
				wantOps: []model.Operation{add},
			}
		}(),
		func() testcase {
			from := nameProperty("")
			return testcase{
				name: "remove property",
				from: from,
				to:   nil,
				wantOps: []model.Operation{
					&model.DropColumn{Schema: "public", Table: "users", Column: "full_name"},
				},
			}
		}(),
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := DefaultDiff.PropertyDiff(tt.from, tt.to)
			require.Equalf(t, tt.wantErr, err != nil, "got: %v", err)
			require.EqualValues(t, tt.wantOps, ops)
		})
	}
}

func TestDiff_KeyDiff(t *testing.T) {
	type testcase struct {
		name     string
		from, to *model.Key
		wantOps  []model.Operation
		wantErr  bool
	}
	tests := []testcase{
		{
			name: "no changes",
			from: uniqueKey(),
			to:   uniqueKey(),
		},
		func() testcase {
			from, to := uniqueKey(), uniqueKey()
			to.AddAttrs(&Clustered{V: true})
			add := &model.AddUniqueConstraint{Schema: "public", Table: "orders", K: to}
			add.Annotate(AnnotationClustered, "true")
			return testcase{
				name: "clustered flag added",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropUniqueConstraint{Schema: "public", Table: "orders", Name: "uq_orders_code"},
					add,
				},
			}
		}(),
		func() testcase {
			from, to := uniqueKey(), uniqueKey()
			from.AddAttrs(&Clustered{V: true})
			return testcase{
				name: "clustered flag removed",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropUniqueConstraint{Schema: "public", Table: "orders", Name: "uq_orders_code"},
					&model.AddUniqueConstraint{Schema: "public", Table: "orders", K: to},
				},
			}
		}(),
		func() testcase {
			// An absent flag and a flag set to false are distinct states.
			from, to := uniqueKey(), uniqueKey()
			to.AddAttrs(&Clustered{V: false})
			add := &model.AddUniqueConstraint{Schema: "public", Table: "orders", K: to}
			add.Annotate(AnnotationClustered, "false")
			return testcase{
				name: "clustered flag disabled",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropUniqueConstraint{Schema: "public", Table: "orders", Name: "uq_orders_code"},
					add,
				},
			}
		}(),
		func() testcase {
			from, to := primaryKey(), primaryKey()
			to.AddAttrs(&Clustered{V: true})
			add := &model.AddPrimaryKey{Schema: "public", Table: "users", K: to}
			add.Annotate(AnnotationClustered, "true")
			return testcase{
				name: "primary key clustering change",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropPrimaryKey{Schema: "public", Table: "users", Name: "pk_users"},
					add,
				},
			}
		}(),
		func() testcase {
			// A planned add carries the annotation with no extra drop.
			from, to := uniqueKey(), wideUniqueKey()
			to.AddAttrs(&Clustered{V: true})
			add := &model.AddUniqueConstraint{Schema: "public", Table: "orders", K: to}
			add.Annotate(AnnotationClustered, "true")
			return testcase{
				name: "columns and clustering changed",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropUniqueConstraint{Schema: "public", Table: "orders", Name: "uq_orders_code"},
					add,
				},
			}
		}(),
		func() testcase {
			to := uniqueKey()
			to.AddAttrs(&Clustered{V: true})
			add := &model.AddUniqueConstraint{Schema: "public", Table: "orders", K: to}
			add.Annotate(AnnotationClustered, "true")
			return testcase{
				name:    "add key",
				from:    nil,
				to:      to,
				wantOps: []model.Operation{add},
			}
		}(),
		func() testcase {
			from := primaryKey()
			return testcase{
				name: "remove key",
				from: from,
				to:   nil,
				wantOps: []model.Operation{
					&model.DropPrimaryKey{Schema: "public", Table: "users", Name: "pk_users"},
				},
			}
		}(),
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := DefaultDiff.KeyDiff(tt.from, tt.to)
			require.Equalf(t, tt.wantErr, err != nil, "got: %v", err)
			require.EqualValues(t, tt.wantOps, ops)
		})
	}
}

func TestDiff_IndexDiff(t *testing.T) {
	type testcase struct {
		name     string
		from, to *model.Index
		wantOps  []model.Operation
		wantErr  bool
	}
	tests := []testcase{
		{
			name: "no changes",
			from: nameIndex(),
			to:   nameIndex(),
		},
		func() testcase {
			from, to := nameIndex(), nameIndex()
			to.AddAttrs(&Clustered{V: true})
			create := &model.CreateIndex{
				Schema:  "public",
				Table:   "users",
				Name:    "ix_users_first_last",
				Columns: []string{"first", "last"},
			}
			create.Annotate(AnnotationClustered, "true")
			return testcase{
				name: "clustered flag added",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropIndex{Schema: "public", Table: "users", Name: "ix_users_first_last"},
					create,
				},
			}
		}(),
		func() testcase {
			from, to := nameIndex(), nameIndex()
			from.AddAttrs(&Clustered{V: true})
			return testcase{
				name: "clustered flag removed",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropIndex{Schema: "public", Table: "users", Name: "ix_users_first_last"},
					&model.CreateIndex{
						Schema:  "public",
						Table:   "users",
						Name:    "ix_users_first_last",
						Columns: []string{"first", "last"},
					},
				},
			}
		}(),
		func() testcase {
			// A planned create carries the annotation with no extra drop.
			from, to := nameIndex(), nameIndex()
			to.Unique = true
			to.AddAttrs(&Clustered{V: true})
			create := &model.CreateIndex{
				Schema:  "public",
				Table:   "users",
				Name:    "ix_users_first_last",
				Columns: []string{"first", "last"},
				Unique:  true,
			}
			create.Annotate(AnnotationClustered, "true")
			return testcase{
				name: "uniqueness and clustering changed",
				from: from,
				to:   to,
				wantOps: []model.Operation{
					&model.DropIndex{Schema: "public", Table: "users", Name: "ix_users_first_last"},
					create,
				},
			}
		}(),
		func() testcase {
			to := nameIndex()
			to.AddAttrs(&Clustered{V: true})
			create := &model.CreateIndex{
				Schema:  "public",
				Table:   "users",
				Name:    "ix_users_first_last",
				Columns: []string{"first", "last"},
			}
			create.Annotate(AnnotationClustered, "true")
			return testcase{
				name:    "add index",
				from:    nil,
				to:      to,
				wantOps: []model.Operation{create},
			}
		}(),
		func() testcase {
			from := nameIndex()
			return testcase{
				name: "remove index",
				from: from,
				to:   nil,
				wantOps: []model.Operation{
					&model.DropIndex{Schema: "public", Table: "users", Name: "ix_users_first_last"},
				},
			}
		}(),
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := DefaultDiff.IndexDiff(tt.from, tt.to)
			require.Equalf(t, tt.wantErr, err != nil, "got: %v", err)
			require.EqualValues(t, tt.wantOps, ops)
		})
	}
}

func TestDiff_ContractViolations(t *testing.T) {
	t.Run("missing key add", func(t *testing.T) {
		d := &diff{base: &mockDiffer{}, seq: DefaultSequence()}
		ops, err := d.AddKey(uniqueKey())
		require.Nil(t, ops)
		require.EqualError(t, err, `postgres: missing add operation for key "uq_orders_code"`)
	})
	t.Run("duplicate key add", func(t *testing.T) {
		k := uniqueKey()
		d := &diff{base: &mockDiffer{ops: []model.Operation{
			&model.AddUniqueConstraint{Schema: "public", Table: "orders", K: k},
			&model.AddUniqueConstraint{Schema: "public", Table: "orders", K: k},
		}}, seq: DefaultSequence()}
		ops, err := d.AddKey(k)
		require.Nil(t, ops)
		require.EqualError(t, err, `postgres: duplicate add operations for key "uq_orders_code"`)
	})
	t.Run("missing index create", func(t *testing.T) {
		d := &diff{base: &mockDiffer{}, seq: DefaultSequence()}
		ops, err := d.AddIndex(nameIndex())
		require.Nil(t, ops)
		require.EqualError(t, err, `postgres: missing create operation for index "ix_users_first_last"`)
	})
	t.Run("duplicate column alter", func(t *testing.T) {
		from, to := nameProperty(""), nameProperty("")
		alter := &model.AlterColumn{Schema: "public", Table: "users", From: from, To: to}
		d := &diff{base: &mockDiffer{ops: []model.Operation{alter, alter}}, seq: DefaultSequence()}
		ops, err := d.PropertyDiff(from, to)
		require.Nil(t, ops)
		require.EqualError(t, err, `postgres: duplicate alter operations for column "full_name"`)
	})
}

func TestDefaultDiff(t *testing.T) {
	ops, err := DefaultDiff.ModelDiff(
		model.New("public").AddEntities(
			model.NewEntityType("User").AddProperties(model.NewIntProperty("Id", TypeInt)),
		),
		model.New("public"),
	)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.IsType(t, &model.DropTable{}, ops[0])
}

// mockDiffer returns canned operations regardless of its input.
type mockDiffer struct {
	model.Differ
	ops []model.Operation
}

func (m *mockDiffer) PropertyDiff(_, _ *model.Property) ([]model.Operation, error) {
	return m.ops, nil
}

func (m *mockDiffer) AddKey(*model.Key) ([]model.Operation, error) {
	return m.ops, nil
}

func (m *mockDiffer) AddIndex(*model.Index) ([]model.Operation, error) {
	return m.ops, nil
}

// sequenceModel returns a model with a single entity type whose primary
// key generates its value from a sequence when gen is set.
func sequenceModel(gen bool) *model.Model {
	m := model.New("public")
	e := model.NewEntityType("Order")
	id := model.NewIntProperty("Id", TypeBigInt)
	if gen {
		id.AddAttrs(&ValueGeneration{Strategy: GenerationSequence})
	}
	e.AddProperties(id)
	e.SetPrimaryKey(model.NewPrimaryKey(id))
	m.AddEntities(e)
	return m
}

// identityModel returns a model whose primary key declares identity
// generation explicitly.
func identityModel() *model.Model {
	m := sequenceModel(false)
	m.Entities[0].Properties[0].AddAttrs(&ValueGeneration{Strategy: GenerationIdentity})
	return m
}

// keyModel returns a model with a single entity type carrying a unique
// constraint.
func keyModel() *model.Model {
	m := model.New("public")
	e := model.NewEntityType("Order")
	code := model.NewStringProperty("Code", TypeVarChar)
	e.AddProperties(code)
	e.AddKeys(model.NewUniqueConstraint(code))
	m.AddEntities(e)
	return m
}

// computedModel returns a model with a plain primary key and a computed
// total property.
func computedModel(expr string) *model.Model {
	m := model.New("public")
	e := model.NewEntityType("Order")
	id := model.NewIntProperty("Id", TypeBigInt).
		AddAttrs(&ValueGeneration{Strategy: GenerationIdentity})
	total := model.NewIntProperty("Total", TypeBigInt).
		SetGeneratedExpr(&model.GeneratedExpr{Expr: expr})
	e.AddProperties(id, total)
	e.SetPrimaryKey(model.NewPrimaryKey(id))
	m.AddEntities(e)
	return m
}

// nameProperty returns a string property of a detached entity type,
// optionally carrying a computed expression.
func nameProperty(expr string) *model.Property {
	e := model.NewEntityType("User").SetSchema("public")
	p := model.NewStringProperty("FullName", TypeVarChar)
	if expr != "" {
		p.SetGeneratedExpr(&model.GeneratedExpr{Expr: expr})
	}
	e.AddProperties(p)
	return p
}

// uniqueKey returns a unique constraint of a detached entity type.
func uniqueKey() *model.Key {
	e := model.NewEntityType("Order").SetSchema("public")
	code := model.NewStringProperty("Code", TypeVarChar)
	e.AddProperties(code)
	e.AddKeys(model.NewUniqueConstraint(code))
	return e.Keys[0]
}

// wideUniqueKey returns a two-column unique constraint named as
// uniqueKey's to form a matched pair with different columns.
func wideUniqueKey() *model.Key {
	e := model.NewEntityType("Order").SetSchema("public")
	code := model.NewStringProperty("Code", TypeVarChar)
	region := model.NewStringProperty("Region", TypeVarChar)
	e.AddProperties(code, region)
	k := model.NewUniqueConstraint(code, region)
	k.Name = "uq_orders_code"
	e.AddKeys(k)
	return k
}

// primaryKey returns the primary key of a detached entity type.
func primaryKey() *model.Key {
	e := model.NewEntityType("User").SetSchema("public")
	id := model.NewIntProperty("Id", TypeBigInt)
	e.AddProperties(id)
	e.SetPrimaryKey(model.NewPrimaryKey(id))
	return e.PrimaryKey
}

// nameIndex returns a two-column index of a detached entity type.
func nameIndex() *model.Index {
	e := model.NewEntityType("User").SetSchema("public")
	first := model.NewStringProperty("First", TypeVarChar)
	last := model.NewStringProperty("Last", TypeVarChar)
	e.AddProperties(first, last)
	e.AddIndexes(model.NewIndex("", first, last))
	return e.Indexes[0]
}
