package database

import (
	"fmt"
	"log"
	"os"

	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedRootAdmin(); err != nil {
		return fmt.Errorf("failed to seed root admin: %w", err)
	}

	if err := s.SeedDemoTenant(); err != nil {
		return fmt.Errorf("failed to seed demo tenant: %w", err)
	}

	if err := s.SeedDemoCatalog(); err != nil {
		return fmt.Errorf("failed to seed demo catalog: %w", err)
	}

	if err := s.SeedDemoAccounts(); err != nil {
		return fmt.Errorf("failed to seed demo accounts: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedRootAdmin creates the platform-global admin from ADMIN_EMAIL and
// ADMIN_PASSWORD. Without those variables the step is skipped.
func (s *Seeder) SeedRootAdmin() error {
	var count int64
	if err := s.db.Model(&model.SystemUser{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Root admin already exists, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping root admin creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.SystemUser{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "Platform Administrator",
		Role:         model.RoleAdmin,
		Status:       model.PrincipalStatusActive,
		TokenVersion: 0,
		// TenantID nil: global scope
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created root admin: %s\n", admin.Email)
	return nil
}

// SeedDemoTenant creates a demo tenant with one institute
func (s *Seeder) SeedDemoTenant() error {
	var count int64
	if err := s.db.Model(&model.Tenant{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Tenants already exist, skipping...")
		return nil
	}

	tenant := &model.Tenant{
		Name:         "Sunrise Academy",
		Slug:         "sunrise-academy",
		ContactEmail: "admin@sunrise.example.com",
		Status:       model.TenantStatusActive,
	}
	if err := s.db.Create(tenant).Error; err != nil {
		return err
	}

	institute := &model.Institute{
		TenantID: tenant.ID,
		Name:     "Sunrise Academy Main Campus",
		Code:     "MAIN",
		Address:  "Bhopal, Madhya Pradesh",
		Status:   "active",
	}
	if err := s.db.Create(institute).Error; err != nil {
		return err
	}

	log.Printf("✅ Created demo tenant %q with institute %q\n", tenant.Slug, institute.Code)
	return nil
}

// SeedDemoCatalog creates sample courses, specializations and videos for the
// demo tenant
func (s *Seeder) SeedDemoCatalog() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Courses already exist, skipping...")
		return nil
	}

	var tenant model.Tenant
	if err := s.db.Where("slug = ?", "sunrise-academy").First(&tenant).Error; err != nil {
		log.Println("⏭️  No demo tenant found, skipping catalog seeding...")
		return nil
	}

	var institute model.Institute
	if err := s.db.Where("tenant_id = ?", tenant.ID).First(&institute).Error; err != nil {
		return err
	}

	courses := []model.Course{
		{
			TenantID:    tenant.ID,
			InstituteID: &institute.ID,
			Title:       "JEE Main + Advanced Complete Program",
			Code:        "JEE-2027",
			Description: "Two-year engineering entrance preparation with physics, chemistry and mathematics tracks",
			Status:      model.CourseStatusPublished,
			PriceAmount: 4500000,
			Currency:    "INR",
		},
		{
			TenantID:    tenant.ID,
			InstituteID: &institute.ID,
			Title:       "NEET Foundation",
			Code:        "NEET-FND",
			Description: "Biology-first medical entrance foundation for classes 9 and 10",
			Status:      model.CourseStatusPublished,
			PriceAmount: 2800000,
			Currency:    "INR",
		},
		{
			TenantID:    tenant.ID,
			InstituteID: &institute.ID,
			Title:       "Class 12 Board Booster",
			Code:        "CBSE-12",
			Description: "Board exam crash course",
			Status:      model.CourseStatusDraft,
			PriceAmount: 900000,
			Currency:    "INR",
		},
	}
	if err := s.db.Create(&courses).Error; err != nil {
		return err
	}

	specializations := []model.Specialization{
		{TenantID: tenant.ID, CourseID: courses[0].ID, Title: "Physics", Code: "PHY", Sequence: 1, Status: "active"},
		{TenantID: tenant.ID, CourseID: courses[0].ID, Title: "Chemistry", Code: "CHEM", Sequence: 2, Status: "active"},
		{TenantID: tenant.ID, CourseID: courses[0].ID, Title: "Mathematics", Code: "MATH", Sequence: 3, Status: "active"},
		{TenantID: tenant.ID, CourseID: courses[1].ID, Title: "Biology", Code: "BIO", Sequence: 1, Status: "active"},
	}
	if err := s.db.Create(&specializations).Error; err != nil {
		return err
	}

	videos := []model.Video{
		{
			TenantID:         tenant.ID,
			CourseID:         courses[0].ID,
			SpecializationID: &specializations[0].ID,
			Title:            "Kinematics: Introduction",
			ProviderAssetID:  "demo-asset-0001",
			DurationSeconds:  2710,
			Sequence:         1,
			Status:           model.VideoStatusReady,
		},
		{
			TenantID:         tenant.ID,
			CourseID:         courses[0].ID,
			SpecializationID: &specializations[0].ID,
			Title:            "Kinematics: Relative Motion",
			ProviderAssetID:  "demo-asset-0002",
			DurationSeconds:  3125,
			Sequence:         2,
			Status:           model.VideoStatusReady,
		},
		{
			TenantID:        tenant.ID,
			CourseID:        courses[1].ID,
			Title:           "Cell Structure Basics",
			ProviderAssetID: "demo-asset-0003",
			DurationSeconds: 1980,
			Sequence:        1,
			Status:          model.VideoStatusProcessing,
		},
	}
	if err := s.db.Create(&videos).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d courses, %d specializations, %d videos\n",
		len(courses), len(specializations), len(videos))
	return nil
}

// SeedDemoAccounts creates one teacher and one student in the demo tenant.
// Both get the password "changeme123" and should only exist in development.
func (s *Seeder) SeedDemoAccounts() error {
	if os.Getenv("GO_ENV") == "production" {
		log.Println("⏭️  Production environment, skipping demo accounts...")
		return nil
	}

	var count int64
	if err := s.db.Model(&model.Teacher{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Teachers already exist, skipping...")
		return nil
	}

	var tenant model.Tenant
	if err := s.db.Where("slug = ?", "sunrise-academy").First(&tenant).Error; err != nil {
		log.Println("⏭️  No demo tenant found, skipping demo accounts...")
		return nil
	}

	var institute model.Institute
	if err := s.db.Where("tenant_id = ?", tenant.ID).First(&institute).Error; err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword("changeme123")
	if err != nil {
		return err
	}

	teacher := &model.Teacher{
		TenantID:     tenant.ID,
		InstituteID:  &institute.ID,
		Email:        "teacher@sunrise.example.com",
		PasswordHash: passwordHash,
		Name:         "Demo Teacher",
		Status:       model.PrincipalStatusActive,
	}
	if err := s.db.Create(teacher).Error; err != nil {
		return err
	}

	student := &model.Student{
		TenantID:     tenant.ID,
		InstituteID:  &institute.ID,
		Email:        "student@sunrise.example.com",
		PasswordHash: passwordHash,
		Name:         "Demo Student",
		EnrollmentNo: "SUN-2026-0001",
		Status:       model.PrincipalStatusActive,
	}
	if err := s.db.Create(student).Error; err != nil {
		return err
	}

	log.Printf("✅ Created demo teacher %s and student %s\n", teacher.Email, student.Email)
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
