package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBorrowerType(t *testing.T) {
	got, err := ParseBorrowerType("STUDENT")
	require.NoError(t, err)
	assert.Equal(t, BorrowerTypeStudent, got)

	got, err = ParseBorrowerType("TEACHER")
	require.NoError(t, err)
	assert.Equal(t, BorrowerTypeTeacher, got)

	for _, bad := range []string{"", "student", "PARENT"} {
		_, err := ParseBorrowerType(bad)
		assert.ErrorIs(t, err, ErrInvalidBorrowerType, "input %q", bad)
	}
}

func TestLoanBorrowerColumns(t *testing.T) {
	studentID := uuid.New()
	teacherID := uuid.New()

	var loan Loan
	loan.SetBorrower(StudentRef(studentID))
	require.NotNil(t, loan.StudentID)
	assert.Equal(t, studentID, *loan.StudentID)
	assert.Nil(t, loan.TeacherID)
	assert.Equal(t, StudentRef(studentID), loan.Borrower())

	// Switching borrower kind clears the other column.
	loan.SetBorrower(TeacherRef(teacherID))
	require.NotNil(t, loan.TeacherID)
	assert.Equal(t, teacherID, *loan.TeacherID)
	assert.Nil(t, loan.StudentID)
	assert.Equal(t, TeacherRef(teacherID), loan.Borrower())
}
