package models

import "time"

// User represents a registered student
type User struct {
	ID        string    `json:"id" db:"id" bson:"_id"`
	StudentID string    `json:"studentId" db:"student_id" bson:"student_id"`
	FullName  string    `json:"fullName" db:"full_name" bson:"full_name"`
	Email     string    `json:"email" db:"email" bson:"email"`
	Course    string    `json:"course" db:"course" bson:"course"`
	Campus    string    `json:"campus" db:"campus" bson:"campus"`
	Password  string    `json:"-" db:"password_hash" bson:"password_hash"` // Never expose in JSON
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"created_at"`
}

// UserResponse is what we send to clients (without sensitive data)
type UserResponse struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Course    string    `json:"course"`
	Campus    string    `json:"campus"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		StudentID: u.StudentID,
		FullName:  u.FullName,
		Email:     u.Email,
		Course:    u.Course,
		Campus:    u.Campus,
		CreatedAt: u.CreatedAt,
	}
}

// DisplayName is the name stamped on messages the user writes.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.StudentID != "" {
		return u.StudentID
	}
	return "Student"
}
