package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/config"
	"github.com/consultwithcase/portalsync/internal/report"
	"github.com/consultwithcase/portalsync/internal/secrets"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Manage employee records",
}

var employeesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update an employee record",
	RunE:  runEmployeesAdd,
}

var employeesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List employee records",
	RunE:  runEmployeesList,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

var configTestEmployeesCmd = &cobra.Command{
	Use:   "test-employees NUMBER...",
	Short: "Set the employees notified outside prod",
	RunE:  runConfigTestEmployees,
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage vendor credentials in the OS keyring",
}

var secretSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Store a secret read from stdin, e.g. /TSheets/accessToken",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretSet,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a secret from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretDelete,
}

func init() {
	f := employeesAddCmd.Flags()
	f.String("id", "", "Portal employee id")
	f.Int("number", 0, "Employee number")
	f.String("first", "", "First name")
	f.String("last", "", "Last name")
	f.String("hired", "", "Hire date (YYYY-MM-DD)")
	f.Int("work-status", 100, "Work status percentage; 0 is inactive")
	f.String("phone", "", "Phone number")
	f.Bool("sms-opt-out", false, "Never send SMS reminders")
	f.String("cohort", store.CohortCASE, "Cohort: case or cyk")
	f.String("tsheets-id", "", "TSheets user id")
	f.String("adp-aoid", "", "ADP associate OID")
	f.String("unanet-key", "", "Unanet person key")
	_ = employeesAddCmd.MarkFlagRequired("id")
	_ = employeesAddCmd.MarkFlagRequired("number")

	employeesCmd.AddCommand(employeesAddCmd)
	employeesCmd.AddCommand(employeesListCmd)
	configCmd.AddCommand(configTestEmployeesCmd)
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)

	rootCmd.AddCommand(employeesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(secretCmd)
}

func runEmployeesAdd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	e := store.Employee{}
	e.ID, _ = f.GetString("id")
	e.EmployeeNumber, _ = f.GetInt("number")
	e.FirstName, _ = f.GetString("first")
	e.LastName, _ = f.GetString("last")
	e.WorkStatus, _ = f.GetInt("work-status")
	e.PhoneNumber, _ = f.GetString("phone")
	e.SMSOptedOut, _ = f.GetBool("sms-opt-out")
	e.Cohort, _ = f.GetString("cohort")
	e.TSheetsUserID, _ = f.GetString("tsheets-id")
	e.ADPAOID, _ = f.GetString("adp-aoid")
	e.UnanetPersonKey, _ = f.GetString("unanet-key")

	if e.Cohort != store.CohortCASE && e.Cohort != store.CohortCYK {
		return apperr.InvalidInput("add employee", "unknown cohort %q", e.Cohort)
	}
	if hired, _ := f.GetString("hired"); hired != "" {
		d, err := timesheet.ParseDate(hired)
		if err != nil {
			return err
		}
		e.HireDate = d
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.UpsertEmployee(context.Background(), &e); err != nil {
		return err
	}
	fmt.Printf("Saved employee %d (%s)\n", e.EmployeeNumber, e.Name())
	return nil
}

func runEmployeesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	employees, err := db.ListEmployees(context.Background())
	if err != nil {
		return fmt.Errorf("listing employees: %w", err)
	}
	if len(employees) == 0 {
		fmt.Println("No employees found.")
		return nil
	}
	return report.Employees(os.Stdout, employees)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := config.Save(configPath, &cfg); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func runConfigTestEmployees(cmd *cobra.Command, args []string) error {
	numbers := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return apperr.InvalidInput("test employees", "invalid employee number %q", a)
		}
		numbers = append(numbers, n)
	}
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.SaveTestEmployees(path, numbers); err != nil {
		return err
	}
	fmt.Printf("Test employees: %v\n", numbers)
	return nil
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(os.Stderr, "Value for %s: ", args[0])
	value, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && value == "" {
		return fmt.Errorf("reading secret: %w", err)
	}
	value = strings.TrimRight(value, "\r\n")
	if value == "" {
		return apperr.InvalidInput("set secret", "empty value for %s", args[0])
	}
	if err := secrets.NewKeyringStore("").Set(args[0], value); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved %s (%s)\n", args[0], apperr.Redact(value, 4, 4))
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	if err := secrets.NewKeyringStore("").Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Deleted %s\n", args[0])
	return nil
}
