package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/google/uuid"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

const familyCols = `id, name, family_code, last_assigned_child_index, is_active, created_at`

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.FamilyCode, &f.LastAssignedChildIndex, &f.IsActive, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Create inserts a family with a generated join code.
func (s *FamilyStore) Create(name string) (*model.Family, error) {
	code := newFamilyCode()
	result, err := s.db.Exec(
		`INSERT INTO families (name, family_code) VALUES (?, ?)`,
		name, code,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// newFamilyCode derives a short join code from a fresh UUID. Eight hex
// characters keeps collisions rare enough for the UNIQUE constraint to
// catch the remainder.
func newFamilyCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) GetByCode(code string) (*model.Family, error) {
	row := s.db.QueryRow(
		`SELECT `+familyCols+` FROM families WHERE family_code = ? AND is_active = 1`,
		strings.ToUpper(code),
	)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by code: %w", err)
	}
	return f, nil
}

// Deactivate soft-deletes a family. Chores and members stay in place but
// stop resolving through active-only queries.
func (s *FamilyStore) Deactivate(id int64) error {
	_, err := s.db.Exec(`UPDATE families SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate family: %w", err)
	}
	return nil
}

// --- Member methods ---

const userCols = `id, family_id, name, role, earnings, is_active, created_at`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.FamilyID, &u.Name, &u.Role, &u.Earnings, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *FamilyStore) AddMember(familyID int64, name, role string) (*model.User, error) {
	if role != model.RoleParent && role != model.RoleChild {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	result, err := s.db.Exec(
		`INSERT INTO users (family_id, name, role) VALUES (?, ?, ?)`,
		familyID, name, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUser(id)
}

func (s *FamilyStore) GetUser(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetActiveUser resolves a user only when both the user and their family
// are active. The identity middleware goes through this.
func (s *FamilyStore) GetActiveUser(id int64) (*model.User, error) {
	row := s.db.QueryRow(
		`SELECT u.id, u.family_id, u.name, u.role, u.earnings, u.is_active, u.created_at
		 FROM users u
		 JOIN families f ON u.family_id = f.id
		 WHERE u.id = ? AND u.is_active = 1 AND f.is_active = 1`,
		id,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active user: %w", err)
	}
	return u, nil
}

// ListMembers returns active members ordered for display (parents first,
// then by name).
func (s *FamilyStore) ListMembers(familyID int64) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE family_id = ? AND is_active = 1 ORDER BY role DESC, name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *u)
	}
	return members, rows.Err()
}

// ListChildren returns active children in ascending id order, the stable
// ordering the rotation policy depends on.
func (s *FamilyStore) ListChildren(familyID int64) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE family_id = ? AND role = 'child' AND is_active = 1 ORDER BY id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *u)
	}
	return children, rows.Err()
}

// DeactivateMember soft-deletes a user.
func (s *FamilyStore) DeactivateMember(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	return nil
}
