package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/idtoken"

	"selection/roster"
	"selection/solver"
)

//go:embed schema.sql
var schema string

// Limits on what clients can feed the solver. The bumping search grows
// exponentially with choices per student and depth bound.
const (
	maxChoices     = 5
	maxDepthBound  = 8
	maxImportBytes = 1 << 20
	solveTimeout   = 30 * time.Second
)

func main() {
	for _, key := range []string{"PGCONN", "CLIENT_ID", "CLIENT_SECRET", "ADMINS"} {
		if os.Getenv(key) == "" {
			log.Fatalf("%s environment variable is required", key)
		}
	}
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	db, err := sql.Open("postgres", os.Getenv("PGCONN"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Println("connected to database")

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	mux := newMux(db)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	log.Printf("listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func newMux(db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/google/callback", handleGoogleCallback)
	mux.HandleFunc("GET /api/admin/check", handleAdminCheck)
	mux.HandleFunc("GET /api/cohorts", handleListCohorts(db))
	mux.HandleFunc("POST /api/cohorts", handleCreateCohort(db))
	mux.HandleFunc("DELETE /api/cohorts/{cohortID}", handleDeleteCohort(db))
	mux.HandleFunc("POST /api/cohorts/{cohortID}/admins", handleAddCohortAdmin(db))
	mux.HandleFunc("GET /api/cohorts/{cohortID}", handleGetCohort(db))
	mux.HandleFunc("PATCH /api/cohorts/{cohortID}", handleUpdateCohort(db))
	mux.HandleFunc("GET /api/cohorts/{cohortID}/students", handleListStudents(db))
	mux.HandleFunc("POST /api/cohorts/{cohortID}/students", handleCreateStudent(db))
	mux.HandleFunc("POST /api/cohorts/{cohortID}/students/import", handleImportStudents(db))
	mux.HandleFunc("DELETE /api/cohorts/{cohortID}/students/{studentID}", handleDeleteStudent(db))
	mux.HandleFunc("PUT /api/cohorts/{cohortID}/students/{studentID}/choices", handleSetChoices(db))
	mux.HandleFunc("POST /api/cohorts/{cohortID}/solve", handleSolve(db))
	mux.HandleFunc("GET /api/cohorts/{cohortID}/runs/latest", handleLatestRun(db))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	credential := r.FormValue("credential")
	if credential == "" {
		http.Error(w, "missing credential", http.StatusBadRequest)
		return
	}

	payload, err := idtoken.Validate(context.Background(), credential, os.Getenv("CLIENT_ID"))
	if err != nil {
		log.Println("failed to validate token:", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	email, ok := payload.Claims["email"].(string)
	if !ok || email == "" {
		http.Error(w, "token has no email", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]any{
		"email":   email,
		"name":    payload.Claims["name"],
		"picture": payload.Claims["picture"],
		"token":   signEmail(email),
	})
}

func signEmail(email string) string {
	h := hmac.New(sha256.New, []byte(os.Getenv("CLIENT_SECRET")))
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if !hmac.Equal([]byte(signEmail(email)), []byte(token)) {
		return "", false
	}
	return email, true
}

func isAdmin(email string) bool {
	return slices.ContainsFunc(strings.Split(os.Getenv("ADMINS"), ","), func(a string) bool {
		return strings.TrimSpace(a) == email
	})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	if !isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return email, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		http.Error(w, "invalid "+strings.TrimSuffix(name, "ID")+" ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func isCohortAdmin(db *sql.DB, email string, cohortID int64) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM cohort_admins WHERE cohort_id = $1 AND email = $2)", cohortID, email).Scan(&exists)
	return exists, err
}

func requireCohortAdmin(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, false
	}
	cohortID, ok := pathID(w, r, "cohortID")
	if !ok {
		return "", 0, false
	}
	if isAdmin(email) {
		return email, cohortID, true
	}
	admin, err := isCohortAdmin(db, email, cohortID)
	if err != nil {
		log.Println("failed to check cohort admin:", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return "", 0, false
	}
	if !admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", 0, false
	}
	return email, cohortID, true
}

// cohortRole reports "admin" for global and cohort admins, "student" with the
// caller's own student ids when their email is on the roster, and "" otherwise.
func cohortRole(db *sql.DB, email string, cohortID int64) (string, []int64, error) {
	if isAdmin(email) {
		return "admin", nil, nil
	}
	admin, err := isCohortAdmin(db, email, cohortID)
	if err != nil {
		return "", nil, err
	}
	if admin {
		return "admin", nil, nil
	}

	rows, err := db.Query("SELECT id FROM students WHERE cohort_id = $1 AND email = $2", cohortID, email)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()
	var studentIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return "", nil, err
		}
		studentIDs = append(studentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return "", nil, err
	}
	if len(studentIDs) > 0 {
		return "student", studentIDs, nil
	}
	return "", nil, nil
}

func requireCohortMember(db *sql.DB, w http.ResponseWriter, r *http.Request) (int64, string, []int64, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, "", nil, false
	}
	cohortID, ok := pathID(w, r, "cohortID")
	if !ok {
		return 0, "", nil, false
	}
	role, studentIDs, err := cohortRole(db, email, cohortID)
	if err != nil {
		log.Println("failed to look up cohort role:", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return 0, "", nil, false
	}
	if role == "" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return 0, "", nil, false
	}
	return cohortID, role, studentIDs, true
}

func handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]bool{"admin": isAdmin(email)})
}

type cohort struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	DepthBound int    `json:"depth_bound"`
}

func handleListCohorts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		rows, err := db.Query("SELECT id, name, capacity, depth_bound FROM cohorts ORDER BY id")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		cohorts := []cohort{}
		for rows.Next() {
			var c cohort
			if err := rows.Scan(&c.ID, &c.Name, &c.Capacity, &c.DepthBound); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			cohorts = append(cohorts, c)
		}
		writeJSON(w, cohorts)
	}
}

func handleCreateCohort(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		body := cohort{Capacity: solver.DefaultParams.Capacity, DepthBound: solver.DefaultParams.DepthBound}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if err := validateParams(body.Capacity, body.DepthBound); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err := db.QueryRow("INSERT INTO cohorts (name, capacity, depth_bound) VALUES ($1, $2, $3) RETURNING id",
			body.Name, body.Capacity, body.DepthBound).Scan(&body.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, body)
	}
}

func validateParams(capacity, depthBound int) error {
	if capacity < 1 {
		return errors.New("capacity must be at least 1")
	}
	if depthBound < 0 {
		return errors.New("depth_bound must not be negative")
	}
	if depthBound > maxDepthBound {
		return fmt.Errorf("depth_bound must be at most %d", maxDepthBound)
	}
	return nil
}

func handleDeleteCohort(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		cohortID, ok := pathID(w, r, "cohortID")
		if !ok {
			return
		}
		result, err := db.Exec("DELETE FROM cohorts WHERE id = $1", cohortID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "cohort not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAddCohortAdmin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, cohortID, ok := requireCohortAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
			http.Error(w, "email is required", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow("INSERT INTO cohort_admins (cohort_id, email) VALUES ($1, $2) RETURNING id", cohortID, body.Email).Scan(&id)
		if isUniqueViolation(err) {
			http.Error(w, "already an admin", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": id, "email": body.Email})
	}
}

func handleGetCohort(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cohortID, _, _, ok := requireCohortMember(db, w, r)
		if !ok {
			return
		}
		c := cohort{ID: cohortID}
		err := db.QueryRow("SELECT name, capacity, depth_bound FROM cohorts WHERE id = $1", cohortID).Scan(&c.Name, &c.Capacity, &c.DepthBound)
		if err != nil {
			http.Error(w, "cohort not found", http.StatusNotFound)
			return
		}
		writeJSON(w, c)
	}
}

func handleUpdateCohort(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, cohortID, ok := requireCohortAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Name       *string `json:"name"`
			Capacity   *int    `json:"capacity"`
			DepthBound *int    `json:"depth_bound"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		var c cohort
		err := db.QueryRow("SELECT name, capacity, depth_bound FROM cohorts WHERE id = $1", cohortID).Scan(&c.Name, &c.Capacity, &c.DepthBound)
		if err != nil {
			http.Error(w, "cohort not found", http.StatusNotFound)
			return
		}
		if body.Name != nil && *body.Name != "" {
			c.Name = *body.Name
		}
		if body.Capacity != nil {
			c.Capacity = *body.Capacity
		}
		if body.DepthBound != nil {
			c.DepthBound = *body.DepthBound
		}
		if err := validateParams(c.Capacity, c.DepthBound); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if _, err := db.Exec("UPDATE cohorts SET name = $1, capacity = $2, depth_bound = $3 WHERE id = $4",
			c.Name, c.Capacity, c.DepthBound, cohortID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		c.ID = cohortID
		writeJSON(w, c)
	}
}

type studentRow struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email,omitempty"`
	Choices []int64 `json:"choices"`
}

func handleListStudents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cohortID, role, myStudentIDs, ok := requireCohortMember(db, w, r)
		if !ok {
			return
		}

		query := "SELECT id, name, email, choices FROM students WHERE cohort_id = $1 ORDER BY id"
		args := []any{cohortID}
		if role != "admin" {
			query = "SELECT id, name, email, choices FROM students WHERE cohort_id = $1 AND id = ANY($2) ORDER BY id"
			args = append(args, pq.Array(myStudentIDs))
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		students := []studentRow{}
		for rows.Next() {
			var s studentRow
			if err := rows.Scan(&s.ID, &s.Name, &s.Email, pq.Array(&s.Choices)); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if s.Choices == nil {
				s.Choices = []int64{}
			}
			students = append(students, s)
		}
		writeJSON(w, students)
	}
}

// validateChoices rejects long lists, negative project ids and repeated
// choices.
func validateChoices(choices []int64) error {
	if len(choices) > maxChoices {
		return fmt.Errorf("at most %d choices allowed, got %d", maxChoices, len(choices))
	}
	seen := make(map[int64]bool, len(choices))
	for _, c := range choices {
		if c < 0 {
			return fmt.Errorf("invalid project %d", c)
		}
		if seen[c] {
			return fmt.Errorf("project %d chosen more than once", c)
		}
		seen[c] = true
	}
	return nil
}

func handleCreateStudent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, cohortID, ok := requireCohortAdmin(db, w, r)
		if !ok {
			return
		}
		var body studentRow
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if err := validateChoices(body.Choices); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Choices == nil {
			body.Choices = []int64{}
		}
		err := db.QueryRow("INSERT INTO students (cohort_id, name, email, choices) VALUES ($1, $2, $3, $4) RETURNING id",
			cohortID, body.Name, body.Email, pq.Array(body.Choices)).Scan(&body.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, body)
	}
}

// handleImportStudents loads a CSV roster from the request body. With
// ?replace=true the cohort's existing students are removed first.
func handleImportStudents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, cohortID, ok := requireCohortAdmin(db, w, r)
		if !ok {
			return
		}
		students, err := roster.Parse(http.MaxBytesReader(w, r.Body, maxImportBytes))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("roster larger than %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, s := range students {
			if err := validateChoices(toInt64s(s.Choices)); err != nil {
				http.Error(w, fmt.Sprintf("%s: %v", s.Name, err), http.StatusBadRequest)
				return
			}
		}

		tx, err := db.Begin()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		if r.URL.Query().Get("replace") == "true" {
			if _, err := tx.Exec("DELETE FROM students WHERE cohort_id = $1", cohortID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		for _, s := range students {
			if _, err := tx.Exec("INSERT INTO students (cohort_id, name, choices) VALUES ($1, $2, $3)",
				cohortID, s.Name, pq.Array(toInt64s(s.Choices))); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Printf("cohort %d: imported %d students", cohortID, len(students))
		writeJSON(w, map[string]int{"imported": len(students)})
	}
}

func toInt64s(choices []int) []int64 {
	out := make([]int64, len(choices))
	for i, c := range choices {
		out[i] = int64(c)
	}
	return out
}

func handleDeleteStudent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, cohortID, ok := requireCohortAdmin(db, w, r)
		if !ok {
			return
		}
		studentID, ok := pathID(w, r, "studentID")
		if !ok {
			return
		}
		result, err := db.Exec("DELETE FROM students WHERE id = $1 AND cohort_id = $2", studentID, cohortID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "student not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSetChoices(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cohortID, role, myStudentIDs, ok := requireCohortMember(db, w, r)
		if !ok {
			return
		}
		studentID, ok := pathID(w, r, "studentID")
		if !ok {
			return
		}
		if role != "admin" && !slices.Contains(myStudentIDs, studentID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			Choices []int64 `json:"choices"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := validateChoices(body.Choices); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Choices == nil {
			body.Choices = []int64{}
		}
		result, err := db.Exec("UPDATE students SET choices = $1 WHERE id = $2 AND cohort_id = $3",
			pq.Array(body.Choices), studentID, cohortID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "student not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"id": studentID, "choices": body.Choices})
	}
}

// loadStudents reads a cohort's roster ordered by id, so a solve over an
// unchanged roster always sees the same input order.
func loadStudents(db *sql.DB, cohortID int64) ([]*solver.Student, map[*solver.Student]int64, error) {
	rows, err := db.Query("SELECT id, name, choices FROM students WHERE cohort_id = $1 ORDER BY id", cohortID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var students []*solver.Student
	ids := map[*solver.Student]int64{}
	for rows.Next() {
		var id int64
		var name string
		var choices []int64
		if err := rows.Scan(&id, &name, pq.Array(&choices)); err != nil {
			return nil, nil, err
		}
		s := &solver.Student{Name: name, Choices: make([]int, len(choices))}
		for i, c := range choices {
			s.Choices[i] = int(c)
		}
		students = append(students, s)
		ids[s] = id
	}
	return students, ids, rows.Err()
}

type studentRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Rank is the 1-based position of the project among the student's choices.
	Rank int `json:"rank,omitempty"`
}

type projectResult struct {
	Project  int          `json:"project"`
	Students []studentRef `json:"students"`
}

type phaseResult struct {
	Phase     string `json:"phase"`
	Remaining int    `json:"remaining"`
}

type solveResult struct {
	RunID        string          `json:"run_id"`
	Capacity     int             `json:"capacity"`
	DepthBound   int             `json:"depth_bound"`
	Projects     []projectResult `json:"projects"`
	Unassigned   []studentRef    `json:"unassigned"`
	Phases       []phaseResult   `json:"phases"`
	Satisfaction []int           `json:"satisfaction"`
}

func buildSolveResult(runID string, params solver.Params, res solver.Result, ids map[*solver.Student]int64) solveResult {
	out := solveResult{
		RunID:        runID,
		Capacity:     params.Capacity,
		DepthBound:   params.DepthBound,
		Projects:     []projectResult{},
		Unassigned:   []studentRef{},
		Satisfaction: solver.Satisfaction(res),
	}
	for _, project := range res.Assignment.ProjectIDs() {
		pr := projectResult{Project: project, Students: []studentRef{}}
		for _, s := range res.Assignment[project] {
			pr.Students = append(pr.Students, studentRef{
				ID:   ids[s],
				Name: s.Name,
				Rank: slices.Index(s.Choices, project) + 1,
			})
		}
		out.Projects = append(out.Projects, pr)
	}
	for _, s := range res.Unassigned {
		out.Unassigned = append(out.Unassigned, studentRef{ID: ids[s], Name: s.Name})
	}
	for _, ph := range res.Phases {
		out.Phases = append(out.Phases, phaseResult{Phase: ph.Phase.String(), Remaining: ph.Remaining})
	}
	if out.Satisfaction == nil {
		out.Satisfaction = []int{}
	}
	return out
}

func handleSolve(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, cohortID, ok := requireCohortAdmin(db, w, r)
		if !ok {
			return
		}

		var params solver.Params
		err := db.QueryRow("SELECT capacity, depth_bound FROM cohorts WHERE id = $1", cohortID).Scan(&params.Capacity, &params.DepthBound)
		if err != nil {
			http.Error(w, "cohort not found", http.StatusNotFound)
			return
		}

		students, ids, err := loadStudents(db, cohortID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), solveTimeout)
		defer cancel()
		start := time.Now()
		res, solveErr := solver.SolveContext(ctx, students, params)
		elapsed := time.Since(start)

		verifyErr := solver.Verify(students, res, params.Capacity)
		outcome := observeSolve(res, elapsed, solveErr, verifyErr)
		if solveErr != nil {
			log.Printf("cohort %d: solve stopped after %v: %v", cohortID, elapsed, solveErr)
			http.Error(w, "solve did not finish in time; lower depth_bound", http.StatusServiceUnavailable)
			return
		}
		if verifyErr != nil {
			log.Printf("cohort %d: invalid assignment: %v", cohortID, verifyErr)
			http.Error(w, "solver produced an invalid assignment", http.StatusInternalServerError)
			return
		}
		log.Printf("cohort %d: solve %s, %d/%d placed in %v", cohortID, outcome, res.Assignment.Placed(), len(students), elapsed)

		runID := uuid.New()
		result := buildSolveResult(runID.String(), params, res, ids)
		encoded, err := json.Marshal(result)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := db.Exec("INSERT INTO runs (id, cohort_id, capacity, depth_bound, result) VALUES ($1, $2, $3, $4, $5)",
			runID.String(), cohortID, params.Capacity, params.DepthBound, string(encoded)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(encoded)
	}
}

func handleLatestRun(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, cohortID, ok := requireCohortAdmin(db, w, r)
		if !ok {
			return
		}
		var result string
		err := db.QueryRow("SELECT result FROM runs WHERE cohort_id = $1 ORDER BY created_at DESC LIMIT 1", cohortID).Scan(&result)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "no runs yet", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(result))
	}
}
