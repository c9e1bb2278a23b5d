// Package contracts contains the ABIs of the POD contracts and typed
// wrappers around go-ethereum bound contracts for each of them.
package contracts

// AccessControlABI is the ABI of the POD access-control contract.
const AccessControlABI = `[
	{"type": "function", "name": "ADMIN_ROLE", "inputs": [], "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view"},
	{"type": "function", "name": "UNIVERSITY_ROLE", "inputs": [], "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view"},
	{
		"type": "function",
		"name": "hasRole",
		"inputs": [
			{"name": "role",    "type": "bytes32"},
			{"name": "account", "type": "address"}
		],
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "grantUniversityRole",
		"inputs": [{"name": "university", "type": "address"}],
		"outputs": [],
		"stateMutability": "nonpayable"
	}
]`

// RegistryABI is the ABI of the POD university registry.
const RegistryABI = `[
	{
		"type": "function",
		"name": "registerUniversity",
		"inputs": [
			{"name": "name",    "type": "string"},
			{"name": "country", "type": "string"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "approveUniversity",
		"inputs": [{"name": "university", "type": "address"}],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "universities",
		"inputs": [{"name": "", "type": "address"}],
		"outputs": [
			{"name": "name",         "type": "string"},
			{"name": "country",      "type": "string"},
			{"name": "isApproved",   "type": "bool"},
			{"name": "isRegistered", "type": "bool"}
		],
		"stateMutability": "view"
	},
	{"type": "function", "name": "getAllUniversities", "inputs": [], "outputs": [{"name": "", "type": "address[]"}], "stateMutability": "view"},
	{
		"type": "function",
		"name": "isUniversityApproved",
		"inputs": [{"name": "university", "type": "address"}],
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view"
	},
	{
		"type": "event",
		"name": "UniversityRegistered",
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "university", "type": "address"},
			{"indexed": false, "name": "name",       "type": "string"},
			{"indexed": false, "name": "country",    "type": "string"}
		]
	},
	{
		"type": "event",
		"name": "UniversityApproved",
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "university", "type": "address"},
			{"indexed": false, "name": "name",       "type": "string"},
			{"indexed": false, "name": "country",    "type": "string"}
		]
	}
]`

// DiplomaABI is the ABI of the POD diploma issuance contract.
const DiplomaABI = `[
	{
		"type": "function",
		"name": "generateDiploma",
		"inputs": [
			{"name": "student",     "type": "address"},
			{"name": "diplomaHash", "type": "string"}
		],
		"outputs": [{"name": "diplomaId", "type": "bytes32"}],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "batchGenerateDiplomas",
		"inputs": [
			{"name": "students",      "type": "address[]"},
			{"name": "diplomaHashes", "type": "string[]"}
		],
		"outputs": [{"name": "diplomaIds", "type": "bytes32[]"}],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "verifyDiploma",
		"inputs": [{"name": "diplomaId", "type": "bytes32"}],
		"outputs": [
			{"name": "isValid", "type": "bool"},
			{
				"name": "diploma",
				"type": "tuple",
				"components": [
					{"name": "university",  "type": "address"},
					{"name": "student",     "type": "address"},
					{"name": "issueDate",   "type": "uint64"},
					{"name": "isMinted",    "type": "bool"},
					{"name": "diplomaHash", "type": "string"}
				]
			}
		],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "getStudentDiplomas",
		"inputs": [{"name": "student", "type": "address"}],
		"outputs": [{"name": "", "type": "bytes32[]"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "isDiplomaMinted",
		"inputs": [{"name": "diplomaId", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view"
	},
	{
		"type": "event",
		"name": "DiplomaGenerated",
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "diplomaId",  "type": "bytes32"},
			{"indexed": true,  "name": "university", "type": "address"},
			{"indexed": true,  "name": "student",    "type": "address"},
			{"indexed": false, "name": "timestamp",  "type": "uint256"}
		]
	}
]`

// TokenABI is the ABI of the POD diploma NFT.
const TokenABI = `[
	{"type": "function", "name": "name", "inputs": [], "outputs": [{"name": "", "type": "string"}], "stateMutability": "view"},
	{"type": "function", "name": "symbol", "inputs": [], "outputs": [{"name": "", "type": "string"}], "stateMutability": "view"},
	{
		"type": "function",
		"name": "mintDiploma",
		"inputs": [
			{"name": "diplomaId",   "type": "bytes32"},
			{"name": "metadataURI", "type": "string"}
		],
		"outputs": [{"name": "tokenId", "type": "uint256"}],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "ownerOf",
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "tokenURI",
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "getDiplomaIdForToken",
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "bytes32"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "getTokenIdForDiploma",
		"inputs": [{"name": "diplomaId", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view"
	},
	{
		"type": "event",
		"name": "DiplomaMinted",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "tokenId",   "type": "uint256"},
			{"indexed": true, "name": "diplomaId", "type": "bytes32"},
			{"indexed": true, "name": "student",   "type": "address"}
		]
	}
]`
