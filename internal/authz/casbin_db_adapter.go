package authz

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
)

// DatabaseAdapter persists casbin rules in the casbin_policies table.
type DatabaseAdapter struct {
	db *sql.DB
}

func NewDatabaseAdapter(db *sql.DB) *DatabaseAdapter {
	return &DatabaseAdapter{db: db}
}

// LoadPolicy loads every stored rule into the model.
func (a *DatabaseAdapter) LoadPolicy(model model.Model) error {
	rows, err := a.db.Query("SELECT ptype, v0, v1, v2, v3, v4, v5 FROM casbin_policies ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ptype, v0, v1, v2, v3, v4, v5 sql.NullString
		if err := rows.Scan(&ptype, &v0, &v1, &v2, &v3, &v4, &v5); err != nil {
			return err
		}

		values := []string{}
		for _, v := range []sql.NullString{ptype, v0, v1, v2, v3, v4, v5} {
			if v.Valid && v.String != "" {
				values = append(values, v.String)
			}
		}
		persist.LoadPolicyLine(strings.Join(values, ", "), model)
	}

	return rows.Err()
}

// SavePolicy replaces the stored rules with the model's p and g sections.
func (a *DatabaseAdapter) SavePolicy(model model.Model) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM casbin_policies"); err != nil {
		return err
	}
	for _, sec := range []string{"p", "g"} {
		for ptype, ast := range model[sec] {
			for _, rule := range ast.Policy {
				if _, err := tx.Exec(insertRule, ruleParams(ptype, rule)...); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

const insertRule = "INSERT INTO casbin_policies (ptype, v0, v1, v2, v3, v4, v5) VALUES (?, ?, ?, ?, ?, ?, ?)"

func ruleParams(ptype string, rule []string) []any {
	params := make([]any, 7)
	params[0] = ptype
	for i, v := range rule {
		if i < 6 {
			params[i+1] = v
		}
	}
	return params
}

func (a *DatabaseAdapter) AddPolicy(sec string, ptype string, rule []string) error {
	_, err := a.db.Exec(insertRule, ruleParams(ptype, rule)...)
	return err
}

func (a *DatabaseAdapter) AddPolicies(sec string, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.AddPolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

func (a *DatabaseAdapter) RemovePolicy(sec string, ptype string, rule []string) error {
	query := "DELETE FROM casbin_policies WHERE ptype = ?"
	params := []any{ptype}

	for i, v := range rule {
		if i < 6 {
			query += fmt.Sprintf(" AND v%d = ?", i)
			params = append(params, v)
		}
	}

	_, err := a.db.Exec(query, params...)
	return err
}

func (a *DatabaseAdapter) RemovePolicies(sec string, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.RemovePolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

func (a *DatabaseAdapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	query := "DELETE FROM casbin_policies WHERE ptype = ?"
	params := []any{ptype}

	for i, v := range fieldValues {
		if v != "" {
			query += fmt.Sprintf(" AND v%d = ?", fieldIndex+i)
			params = append(params, v)
		}
	}

	_, err := a.db.Exec(query, params...)
	return err
}

// Count returns the number of stored rules.
func (a *DatabaseAdapter) Count() (int, error) {
	var n int
	err := a.db.QueryRow("SELECT COUNT(*) FROM casbin_policies").Scan(&n)
	return n, err
}

var (
	_ persist.Adapter      = (*DatabaseAdapter)(nil)
	_ persist.BatchAdapter = (*DatabaseAdapter)(nil)
)
